package grpc

import (
	"context"
	"log"
	"time"

	grpcmeta "github.com/louisbranch/inference-mock/internal/transport/grpc/metadata"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor logs each unary call with its outcome.
func LoggingUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStreamInterceptor logs each stream when it ends.
func LoggingStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, stream)
		logCall(stream.Context(), info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, method string, start time.Time, err error) {
	log.Printf("grpc %s request_id=%s code=%s duration=%s",
		method, grpcmeta.RequestIDFromContext(ctx), status.Code(err), time.Since(start).Round(time.Microsecond))
}

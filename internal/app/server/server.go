// Package server hosts the inference gRPC service on every configured port.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/louisbranch/inference-mock/internal/platform/timeouts"
	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	transportgrpc "github.com/louisbranch/inference-mock/internal/transport/grpc"
	grpcmeta "github.com/louisbranch/inference-mock/internal/transport/grpc/metadata"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves one gRPC server on several listeners.
type Server struct {
	listeners       []net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	shutdownTimeout time.Duration
}

// New listens on every port and registers service. A port of 0 picks a free
// port. Listeners already opened are closed if a later one fails.
func New(ports []int, service *transportgrpc.InferenceService) (*Server, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("at least one port is required")
	}
	if service == nil {
		return nil, fmt.Errorf("inference service is required")
	}

	listeners := make([]net.Listener, 0, len(ports))
	for _, port := range ports {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			for _, opened := range listeners {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("listen on port %d: %w", port, err)
		}
		listeners = append(listeners, listener)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcmeta.UnaryServerInterceptor(nil),
			transportgrpc.LoggingUnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			grpcmeta.StreamServerInterceptor(nil),
			transportgrpc.LoggingStreamInterceptor(),
		),
	)
	inference.RegisterGRPCInferenceServiceServer(grpcServer, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(inference.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listeners:       listeners,
		grpcServer:      grpcServer,
		health:          healthServer,
		shutdownTimeout: timeouts.Shutdown,
	}, nil
}

// Addrs returns the bound listener addresses in port order.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, listener := range s.listeners {
		addrs = append(addrs, listener.Addr())
	}
	return addrs
}

// Serve blocks until every listener stops or the context ends. On
// cancellation in-flight calls get the shutdown timeout to finish before the
// server stops hard.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, listener := range s.listeners {
		log.Printf("server listening at %v", listener.Addr())
		g.Go(func() error {
			err := s.grpcServer.Serve(listener)
			if err == nil || errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("serve gRPC on %v: %w", listener.Addr(), err)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			s.stop()
		} else {
			// A failed listener takes the others down with it.
			s.grpcServer.Stop()
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) stop() {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.shutdownTimeout):
		log.Printf("graceful shutdown exceeded %s, stopping", s.shutdownTimeout)
		s.grpcServer.Stop()
		<-done
	}
}

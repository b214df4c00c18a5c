// Package inferencefakes provides an in-process inference backend for tests.
package inferencefakes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Backend is a deterministic inference server. Responses encode the model
// name and a per-model sequence number so tests can assert ordering.
type Backend struct {
	inference.UnimplementedGRPCInferenceServiceServer

	// Latency delays ModelInfer for the named model.
	Latency map[string]time.Duration
	// InferErr, when set, is returned by every ModelInfer call.
	InferErr error
	// NotReady makes ServerReady report false.
	NotReady bool
	// UnsolicitedPerRequest makes ModelStreamInfer emit this many extra
	// responses after each reply.
	UnsolicitedPerRequest int

	mu       sync.Mutex
	seq      map[string]int
	inflight map[string]int
	maxPar   int

	addr       string
	grpcServer *grpc.Server
}

// StartBackend serves b on a loopback port until the test ends.
func StartBackend(t testing.TB, b *Backend) *Backend {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b.addr = listener.Addr().String()
	b.grpcServer = grpc.NewServer()
	inference.RegisterGRPCInferenceServiceServer(b.grpcServer, b)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- b.grpcServer.Serve(listener)
	}()
	t.Cleanup(func() {
		b.grpcServer.Stop()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	})
	return b
}

// Addr returns the backend's host:port.
func (b *Backend) Addr() string { return b.addr }

// Stop stops serving immediately.
func (b *Backend) Stop() { b.grpcServer.Stop() }

// Client dials the backend for direct use in tests.
func (b *Backend) Client(t testing.TB) inference.GRPCInferenceServiceClient {
	t.Helper()
	return Dial(t, b.addr)
}

// Dial returns an inference client for addr that is closed when the test ends.
func Dial(t testing.TB, addr string) inference.GRPCInferenceServiceClient {
	t.Helper()
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.WaitForReady(true)),
	)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return inference.NewGRPCInferenceServiceClient(conn)
}

func (b *Backend) next(model string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seq == nil {
		b.seq = make(map[string]int)
	}
	b.seq[model]++
	return b.seq[model]
}

// MaxConcurrentInfers returns the highest number of ModelInfer calls that
// were in flight at once across all models.
func (b *Backend) MaxConcurrentInfers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxPar
}

func (b *Backend) enter(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight == nil {
		b.inflight = make(map[string]int)
	}
	b.inflight[model]++
	total := 0
	for _, n := range b.inflight {
		total += n
	}
	if total > b.maxPar {
		b.maxPar = total
	}
}

func (b *Backend) leave(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight[model]--
}

func (b *Backend) ServerLive(context.Context, *inference.ServerLiveRequest) (*inference.ServerLiveResponse, error) {
	resp := &inference.ServerLiveResponse{}
	resp.SetLive(true)
	return resp, nil
}

func (b *Backend) ServerReady(context.Context, *inference.ServerReadyRequest) (*inference.ServerReadyResponse, error) {
	resp := &inference.ServerReadyResponse{}
	resp.SetReady(!b.NotReady)
	return resp, nil
}

func (b *Backend) ModelInfer(ctx context.Context, in *inference.ModelInferRequest) (*inference.ModelInferResponse, error) {
	model := in.GetModelName()
	b.enter(model)
	defer b.leave(model)
	if delay := b.Latency[model]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		}
	}
	if b.InferErr != nil {
		return nil, b.InferErr
	}
	return InferResponse(model, in.GetId(), b.next(model)), nil
}

func (b *Backend) ModelConfig(_ context.Context, in *inference.ModelConfigRequest) (*inference.ModelConfigResponse, error) {
	cfg := &inference.ModelConfig{}
	cfg.SetName(in.GetName())
	cfg.SetPlatform(fmt.Sprintf("platform-v%s#%d", in.GetVersion(), b.next("config:"+in.GetName())))
	resp := &inference.ModelConfigResponse{}
	resp.SetConfig(cfg)
	return resp, nil
}

func (b *Backend) ModelStreamInfer(stream inference.GRPCInferenceService_ModelStreamInferServer) error {
	for {
		in, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		model := in.GetModelName()
		replies := 1 + b.UnsolicitedPerRequest
		for range replies {
			resp := &inference.ModelStreamInferResponse{}
			resp.SetInferResponse(InferResponse(model, in.GetId(), b.next("stream:"+model)))
			if err := stream.Send(resp); err != nil {
				return err
			}
		}
	}
}

// InferResponse builds the response the fake returns for the seq-th call.
func InferResponse(model, id string, seq int) *inference.ModelInferResponse {
	resp := &inference.ModelInferResponse{}
	resp.SetModelName(model)
	resp.SetId(id)
	resp.AddRawOutputContents([]byte(fmt.Sprintf("%s#%d", model, seq)))
	return resp
}

// Payload returns the raw output marker of resp ("model#seq").
func Payload(resp *inference.ModelInferResponse) string {
	raw := resp.GetRawOutputContents()
	if len(raw) == 0 {
		return ""
	}
	return string(raw[0])
}

// InferRequest builds a request for model with the given id.
func InferRequest(model, id string) *inference.ModelInferRequest {
	req := &inference.ModelInferRequest{}
	req.SetModelName(model)
	req.SetId(id)
	return req
}

// Unavailable is a convenience status for injected backend failures.
func Unavailable(msg string) error {
	return status.Error(codes.Unavailable, msg)
}

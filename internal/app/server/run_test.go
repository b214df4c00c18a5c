package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"github.com/louisbranch/inference-mock/internal/recording"
	transportgrpc "github.com/louisbranch/inference-mock/internal/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func replayService(t *testing.T) *transportgrpc.InferenceService {
	t.Helper()
	svc, err := transportgrpc.NewInferenceService(transportgrpc.ModeReplay, recording.NewStore(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func loopbackAddr(t *testing.T, addr net.Addr) string {
	t.Helper()
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatalf("split address %q: %v", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.WaitForReady(true)),
	)
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// TestServeAllPortsAndStopOnContext verifies every listener serves the
// inference and health services and that cancel stops them.
func TestServeAllPortsAndStopOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New([]int{0, 0, 0}, replayService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if got := len(srv.Addrs()); got != 3 {
		t.Fatalf("expected 3 listeners, got %d", got)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	for _, addr := range srv.Addrs() {
		conn := dial(t, loopbackAddr(t, addr))
		callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
		live, err := inference.NewGRPCInferenceServiceClient(conn).ServerLive(callCtx, &inference.ServerLiveRequest{})
		if err != nil || !live.GetLive() {
			callCancel()
			t.Fatalf("server live on %v: %v %v", addr, live.GetLive(), err)
		}
		resp, err := grpc_health_v1.NewHealthClient(conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: inference.ServiceName})
		callCancel()
		if err != nil {
			t.Fatalf("health check on %v: %v", addr, err)
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Fatalf("expected serving on %v, got %v", addr, resp.GetStatus())
		}
	}

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

// TestShutdownAbortsLongStreams verifies an open stream does not hold the
// server past the shutdown timeout.
func TestShutdownAbortsLongStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New([]int{0}, replayService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.shutdownTimeout = 100 * time.Millisecond

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	conn := dial(t, loopbackAddr(t, srv.Addrs()[0]))
	stream, err := inference.NewGRPCInferenceServiceClient(conn).ModelStreamInfer(context.Background())
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	req := &inference.ModelInferRequest{}
	req.SetModelName("llama_7b")
	if err := stream.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("recv: %v", err)
	}

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdown timeout")
	}
	if _, err := stream.Recv(); err == nil {
		t.Fatal("expected stream to be aborted")
	}
}

// TestNewPortInUse verifies New returns an error when a port is occupied.
func TestNewPortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	if _, err := New([]int{0, port}, replayService(t)); err == nil {
		t.Fatal("expected error when port is already in use")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, replayService(t)); err == nil {
		t.Fatal("expected error without ports")
	}
	if _, err := New([]int{0}, nil); err == nil {
		t.Fatal("expected error without service")
	}
}

// TestServeReturnsOnCancel verifies Serve returns promptly on cancel without connections.
func TestServeReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New([]int{0}, replayService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not stop on cancel")
	}
}

// TestServeReturnsErrorOnClosedListener verifies Serve reports listener errors.
func TestServeReturnsErrorOnClosedListener(t *testing.T) {
	srv, err := New([]int{0, 0}, replayService(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.listeners[0].Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Serve(ctx); err == nil {
		t.Fatal("expected serve error after closing listener")
	}
}

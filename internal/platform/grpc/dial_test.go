package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// servingProbe reports ready once the health service answers SERVING.
func servingProbe(ctx context.Context, conn *gogrpc.ClientConn) error {
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", resp.GetStatus())
	}
	return nil
}

func TestDialWithProbeSuccess(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := DialWithProbe(ctx, nil, addr, time.Second, servingProbe, nil, DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial with probe: %v", err)
	}
	if conn == nil {
		t.Fatal("expected connection")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close conn: %v", err)
	}
}

func TestDialWithProbeNilProbeSkipsReadiness(t *testing.T) {
	conn, err := DialWithProbe(context.Background(), nil, "127.0.0.1:1", time.Second, nil, nil, DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial without probe: %v", err)
	}
	_ = conn.Close()
}

func TestDialWithProbeUsesDialTimeout(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := DialWithProbe(ctx, nil, addr, 150*time.Millisecond, servingProbe, nil, DefaultClientDialOptions()...)
	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected dial timeout to bound readiness probe, took %v", elapsed)
	}
}

func TestDialWithProbeErrorStages(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		dialer := DialerFunc(func(_ context.Context, _ string, _ ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
			return nil, fmt.Errorf("dial failure")
		})

		_, err := DialWithProbe(context.Background(), dialer, "unused", time.Second, servingProbe, nil)
		var dialErr *DialError
		if !errors.As(err, &dialErr) {
			t.Fatalf("expected DialError, got %T", err)
		}
		if dialErr.Stage != DialStageConnect {
			t.Fatalf("expected stage %q, got %q", DialStageConnect, dialErr.Stage)
		}
	})

	t.Run("ready", func(t *testing.T) {
		addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		defer stop()

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		var logged []string
		logf := func(format string, args ...any) {
			logged = append(logged, fmt.Sprintf(format, args...))
		}
		conn, err := DialWithProbe(ctx, nil, addr, time.Second, servingProbe, logf, DefaultClientDialOptions()...)
		if conn != nil {
			_ = conn.Close()
			t.Fatal("expected nil connection on error")
		}
		var dialErr *DialError
		if !errors.As(err, &dialErr) {
			t.Fatalf("expected DialError, got %T", err)
		}
		if dialErr.Stage != DialStageReady {
			t.Fatalf("expected stage %q, got %q", DialStageReady, dialErr.Stage)
		}
		if dialErr.Addr != addr {
			t.Fatalf("expected addr %q, got %q", addr, dialErr.Addr)
		}
		if len(logged) == 0 {
			t.Fatal("expected readiness wait to be logged")
		}
	})
}

func TestDialErrorFormatting(t *testing.T) {
	wrapped := &DialError{Stage: DialStageConnect, Err: fmt.Errorf("boom")}
	if !strings.Contains(wrapped.Error(), "gRPC connect") {
		t.Fatalf("unexpected error: %s", wrapped.Error())
	}
	if wrapped.Unwrap() == nil {
		t.Fatal("expected wrapped error")
	}
	withAddr := &DialError{Addr: "backend:8305", Stage: DialStageReady, Err: fmt.Errorf("boom")}
	if !strings.Contains(withAddr.Error(), "backend:8305") {
		t.Fatalf("expected address in error: %s", withAddr.Error())
	}

	var nilErr *DialError
	if nilErr.Error() == "" {
		t.Fatal("expected fallback error message")
	}
	if nilErr.Unwrap() != nil {
		t.Fatal("expected nil unwrap for nil error")
	}
}

func TestDialerFuncCallsDelegate(t *testing.T) {
	called := false
	var gotAddr string
	var gotCtx context.Context

	dialer := DialerFunc(func(ctx context.Context, addr string, _ ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
		called = true
		gotAddr = addr
		gotCtx = ctx
		return nil, nil
	})

	if _, err := dialer.DialContext(context.Background(), "target"); err != nil {
		t.Fatalf("dial context: %v", err)
	}
	if !called {
		t.Fatal("expected dialer to be called")
	}
	if gotAddr != "target" {
		t.Fatalf("expected target addr, got %q", gotAddr)
	}
	if gotCtx == nil {
		t.Fatal("expected context to be passed")
	}
}

func TestPollRejectsNilCheck(t *testing.T) {
	if err := Poll(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil check")
	}
}

func TestPollRetriesUntilDone(t *testing.T) {
	attempts := 0
	err := Poll(context.Background(), func(context.Context) (bool, string, error) {
		attempts++
		return attempts == 3, "not yet", nil
	}, nil)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dialer describes the gRPC dial behavior used by helpers.
type Dialer interface {
	DialContext(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)
}

// DialerFunc adapts a dial function to the Dialer interface.
type DialerFunc func(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error)

// DialContext implements Dialer for DialerFunc.
func (fn DialerFunc) DialContext(ctx context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	return fn(ctx, addr, opts...)
}

// newClientDialer creates lazily connecting clients; readiness is established
// by the probe rather than by blocking in the dial.
var newClientDialer = DialerFunc(func(_ context.Context, addr string, opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	return gogrpc.NewClient(addr, opts...)
})

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	// DialStageConnect indicates a dial connection failure.
	DialStageConnect DialStage = "connect"
	// DialStageReady indicates the readiness probe never succeeded.
	DialStageReady DialStage = "ready"
)

// DialError wraps dial and readiness failures with a stage indicator.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	if e.Addr == "" {
		return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("gRPC %s error for %s: %v", e.Stage, e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ReadyProbe reports whether a freshly dialed connection can take traffic.
// A nil error means ready.
type ReadyProbe func(ctx context.Context, conn *gogrpc.ClientConn) error

// DefaultClientDialOptions returns standard dial options for backend clients.
// Includes OTel gRPC instrumentation so that every outbound call propagates
// trace context when a TracerProvider is registered.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// DialWithProbe dials a gRPC endpoint and waits until probe succeeds. The
// dial timeout bounds both stages. It closes the connection if the probe
// never succeeds.
func DialWithProbe(ctx context.Context, dialer Dialer, addr string, dialTimeout time.Duration, probe ReadyProbe, logf func(string, ...any), opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if dialer == nil {
		dialer = newClientDialer
	}

	dialCtx := ctx
	if dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}

	conn, err := dialer.DialContext(dialCtx, addr, opts...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: DialStageConnect, Err: err}
	}
	if probe == nil {
		return conn, nil
	}
	err = Poll(dialCtx, func(ctx context.Context) (bool, string, error) {
		if err := probe(ctx, conn); err != nil {
			return false, "", err
		}
		return true, "", nil
	}, logf)
	if err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: addr, Stage: DialStageReady, Err: err}
	}
	return conn, nil
}

// Package backend manages the record-mode connections to the real inference
// servers. Each known model is bound to exactly one connection; calls for the
// same model are serialized while different models proceed in parallel.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	apperrors "github.com/louisbranch/inference-mock/internal/platform/errors"
	platformgrpc "github.com/louisbranch/inference-mock/internal/platform/grpc"
	"github.com/louisbranch/inference-mock/internal/platform/timeouts"
	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Conn is the exclusive-use handle for one model's backend.
type Conn struct {
	Model string
	Addr  string

	mu     sync.Mutex
	client inference.GRPCInferenceServiceClient
}

// NewConn binds model to an already constructed client.
func NewConn(model, addr string, client inference.GRPCInferenceServiceClient) *Conn {
	return &Conn{Model: model, Addr: addr, client: client}
}

// WithClient runs fn while holding the model's lock. Work that must stay in
// backend call order, such as recording the response, belongs inside fn.
func (c *Conn) WithClient(fn func(inference.GRPCInferenceServiceClient) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.client)
}

// OpenStream opens a ModelStreamInfer stream to the backend. The model's lock
// is held only while the stream is being opened.
func (c *Conn) OpenStream(ctx context.Context) (inference.GRPCInferenceService_ModelStreamInferClient, error) {
	var stream inference.GRPCInferenceService_ModelStreamInferClient
	err := c.WithClient(func(client inference.GRPCInferenceServiceClient) error {
		var err error
		stream, err = client.ModelStreamInfer(ctx)
		return err
	})
	return stream, err
}

// Pool resolves model names to backend connections.
type Pool struct {
	conns   map[string]*Conn
	closers []*grpc.ClientConn
}

// NewPool builds a pool from prepared connections.
func NewPool(conns ...*Conn) *Pool {
	p := &Pool{conns: make(map[string]*Conn, len(conns))}
	for _, conn := range conns {
		p.conns[conn.Model] = conn
	}
	return p
}

// Resolve returns the connection bound to model.
func (p *Pool) Resolve(model string) (*Conn, error) {
	if p != nil {
		if conn, ok := p.conns[model]; ok {
			return conn, nil
		}
	}
	return nil, apperrors.WithMetadata(apperrors.CodeBackendFailure,
		fmt.Sprintf("no backend configured for model %s", model),
		map[string]string{"model": model})
}

// Models returns the sorted model names with a backend.
func (p *Pool) Models() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.conns))
	for name := range p.conns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes every dialed connection.
func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, cc := range p.closers {
		if err := cc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds dialing and the readiness probe of each backend.
	// Zero means timeouts.GRPCDial.
	Timeout time.Duration
	// Dialer overrides how client connections are created.
	Dialer platformgrpc.Dialer
	// GRPCOptions replaces platformgrpc.DefaultClientDialOptions when set.
	GRPCOptions []grpc.DialOption
}

// Dial connects to every backend in addrs (model name to host:port) and
// waits for each to report ready. Any failure closes what was opened and is
// returned as a BackendFailure.
func Dial(ctx context.Context, addrs map[string]string, opts DialOptions) (*Pool, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = timeouts.GRPCDial
	}
	grpcOpts := opts.GRPCOptions
	if len(grpcOpts) == 0 {
		grpcOpts = platformgrpc.DefaultClientDialOptions()
	}

	models := make([]string, 0, len(addrs))
	for model := range addrs {
		models = append(models, model)
	}
	slices.Sort(models)

	var mu sync.Mutex
	pool := NewPool()
	g, gctx := errgroup.WithContext(ctx)
	for _, model := range models {
		addr := addrs[model]
		g.Go(func() error {
			log.Printf("connecting to backend %s for model %s", addr, model)
			logf := func(format string, args ...any) {
				log.Printf("backend %s (%s): "+format, append([]any{addr, model}, args...)...)
			}
			cc, err := platformgrpc.DialWithProbe(gctx, opts.Dialer, addr, timeout, serverReadyProbe, logf, grpcOpts...)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeBackendFailure, "connect backend for model "+model, err)
			}
			mu.Lock()
			defer mu.Unlock()
			pool.closers = append(pool.closers, cc)
			pool.conns[model] = NewConn(model, addr, inference.NewGRPCInferenceServiceClient(cc))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// serverReadyProbe asks the backend's own readiness endpoint.
func serverReadyProbe(ctx context.Context, cc *grpc.ClientConn) error {
	resp, err := inference.NewGRPCInferenceServiceClient(cc).ServerReady(ctx, &inference.ServerReadyRequest{})
	if err != nil {
		return err
	}
	if !resp.GetReady() {
		return apperrors.New(apperrors.CodeBackendFailure, "server reports not ready")
	}
	return nil
}

package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckFunc performs one readiness attempt. It returns done when the target
// is ready, or a short state description for the wait log.
type CheckFunc func(ctx context.Context) (done bool, state string, err error)

// Poll retries check with capped exponential backoff until it reports done or
// the context ends.
func Poll(ctx context.Context, check CheckFunc, logf func(string, ...any)) error {
	if check == nil {
		return fmt.Errorf("readiness check is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		done, state, err := check(callCtx)
		cancel()
		if err == nil && done {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for readiness: %v", err)
			} else {
				logf("waiting for readiness: %s", state)
			}
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("wait for readiness: %w (last error: %v)", ctx.Err(), err)
			}
			return fmt.Errorf("wait for readiness: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}

// WaitForHealth blocks until the gRPC health check reports SERVING or the context ends.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	return Poll(ctx, func(ctx context.Context) (bool, string, error) {
		response, err := healthClient.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return false, "", err
		}
		if response.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			return false, "status " + response.GetStatus().String(), nil
		}
		if logf != nil {
			logf("gRPC health check is SERVING")
		}
		return true, "", nil
	}, logf)
}

package grpc

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/inference-mock/internal/backend"
	"github.com/louisbranch/inference-mock/internal/catalog"
	apperrors "github.com/louisbranch/inference-mock/internal/platform/errors"
	"github.com/louisbranch/inference-mock/internal/platform/id"
	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"github.com/louisbranch/inference-mock/internal/recording"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const streamOp = "model_stream_infer"

// streamBuffer bounds the requests queued between the inbound reader and the
// responder.
const streamBuffer = 4

// SessionIDAttribute is the span attribute holding a stream session ID.
const SessionIDAttribute = attribute.Key("inference_mock.session_id")

// binding is the model a stream session serves, fixed by its first message.
type binding struct {
	model string
	conn  *backend.Conn
}

type streamSession struct {
	id      string
	service *InferenceService
	stream  inference.GRPCInferenceService_ModelStreamInferServer

	// mu orders marker appends against release so no marker outlives the
	// session.
	mu       sync.Mutex
	released bool
}

// ModelStreamInfer serves a bidirectional inference stream. The first inbound
// message binds the session to its model. Replay mode answers each request
// with the next recorded stream response; record mode relays the backend
// stream and records each response that answers a forwarded request.
// Replay misses are reported in-band and leave the session open.
func (s *InferenceService) ModelStreamInfer(stream inference.GRPCInferenceService_ModelStreamInferServer) error {
	sessionID, err := id.NewID()
	if err != nil {
		return status.Errorf(codes.Internal, "%s: session id: %v", streamOp, err)
	}
	trace.SpanFromContext(stream.Context()).SetAttributes(SessionIDAttribute.String(sessionID))
	session := &streamSession{id: sessionID, service: s, stream: stream}
	return session.run()
}

func (ss *streamSession) run() error {
	ctx, cancel := context.WithCancel(ss.stream.Context())
	defer cancel()

	bound := make(chan binding, 1)
	inbound := make(chan *inference.ModelInferRequest, streamBuffer)
	readErr := make(chan error, 1)
	go func() {
		// readErr is filled before inbound closes so a drained inbound
		// channel always has the reader's outcome available.
		readErr <- ss.read(ctx, bound, inbound)
		close(inbound)
		close(bound)
	}()

	b, ok := <-bound
	if !ok {
		return <-readErr
	}
	log.Printf("%s: session %s bound to model %s (%s)", streamOp, ss.id, b.model, ss.service.mode)

	if b.conn == nil {
		return ss.replay(b, inbound, readErr)
	}
	defer ss.release(b.model)
	return ss.record(ctx, b, inbound, readErr)
}

// read consumes the inbound stream. The first message is validated and its
// binding handed over exactly once.
func (ss *streamSession) read(ctx context.Context, bound chan<- binding, inbound chan<- *inference.ModelInferRequest) error {
	var b binding
	first := true
	for {
		req, err := ss.stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if first {
			first = false
			b, err = ss.bind(req.GetModelName())
			if err != nil {
				return err
			}
			bound <- b
		}
		if b.conn != nil && !ss.markPending(b.model, req) {
			return nil
		}
		select {
		case inbound <- req:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// markPending appends a marker for req unless the session was released.
func (ss *streamSession) markPending(model string, req *inference.ModelInferRequest) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.released {
		return false
	}
	ss.service.store.AppendPending(model, recording.PendingMarker{
		Session:   ss.id,
		RequestID: req.GetId(),
		Forwarded: time.Now().UTC(),
	})
	return true
}

// release drops the markers the session still has outstanding. Requests the
// backend never answered must not claim responses from a later session.
func (ss *streamSession) release(model string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.released = true
	if n := ss.service.store.DropPending(model, ss.id); n > 0 {
		log.Printf("%s: session %s: dropped %d unanswered requests for model %s", streamOp, ss.id, n, model)
	}
}

func (ss *streamSession) bind(model string) (binding, error) {
	if !catalog.IsKnown(model) {
		log.Printf("%s: session %s: model not found: %s", streamOp, ss.id, model)
		return binding{}, apperrors.WithMetadata(apperrors.CodeUnknownModel,
			streamOp+": model not found: "+model,
			map[string]string{"model": model})
	}
	if ss.service.mode == ModeReplay {
		return binding{model: model}, nil
	}
	conn, err := ss.service.pool.Resolve(model)
	if err != nil {
		return binding{}, err
	}
	return binding{model: model, conn: conn}, nil
}

func (ss *streamSession) replay(b binding, inbound <-chan *inference.ModelInferRequest, readErr <-chan error) error {
	for range inbound {
		resp := &inference.ModelStreamInferResponse{}
		payload, ok := ss.service.store.PopStream(b.model)
		if ok {
			if err := recording.Decode(payload, resp); err != nil {
				return apperrors.Wrap(apperrors.CodePersistenceFailure, streamOp+": recorded response", err)
			}
		} else {
			resp = ss.miss(b.model)
		}
		if err := ss.stream.Send(resp); err != nil {
			return err
		}
	}
	return <-readErr
}

func (ss *streamSession) record(ctx context.Context, b binding, inbound <-chan *inference.ModelInferRequest, readErr <-chan error) error {
	downstream, err := b.conn.OpenStream(ctx)
	if err != nil {
		log.Printf("%s: session %s: open backend stream: %v", streamOp, ss.id, err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	relayDone := make(chan struct{})
	g.Go(func() error {
		for {
			select {
			case req, ok := <-inbound:
				if !ok {
					return downstream.CloseSend()
				}
				// A failed send surfaces its status through Recv.
				if err := downstream.Send(req); errors.Is(err, io.EOF) {
					return nil
				} else if err != nil {
					return err
				}
			case <-relayDone:
				return nil
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		defer close(relayDone)
		for {
			resp, err := downstream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				log.Printf("%s: session %s: backend: %v", streamOp, ss.id, err)
				return err
			}
			out, err := ss.capture(b.model, resp)
			if err != nil {
				return err
			}
			if err := ss.stream.Send(out); err != nil {
				return err
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	select {
	case err := <-readErr:
		return err
	default:
		// The backend ended first; returning ends the inbound reader too.
		return nil
	}
}

// capture records resp against the session's oldest forwarded request. A
// response with no outstanding request is not recorded and the client gets a
// miss instead.
func (ss *streamSession) capture(model string, resp *inference.ModelStreamInferResponse) (*inference.ModelStreamInferResponse, error) {
	payload, err := recording.Encode(resp)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, streamOp+": record response", err)
	}
	marker, ok := ss.service.store.CapturePending(model, ss.id, payload)
	if !ok {
		return ss.miss(model), nil
	}
	log.Printf("%s: session %s: recorded response to request %q for model %s after %s",
		streamOp, ss.id, marker.RequestID, model, time.Since(marker.Forwarded).Round(time.Microsecond))
	return resp, nil
}

// miss builds the in-band message sent when no recorded response exists.
func (ss *streamSession) miss(model string) *inference.ModelStreamInferResponse {
	trace.SpanFromContext(ss.stream.Context()).AddEvent("recording.miss", trace.WithAttributes(
		attribute.String("inference_mock.model", model),
		attribute.String("inference_mock.operation", streamOp),
		SessionIDAttribute.String(ss.id),
	))
	log.Printf("%s: session %s: no recorded response for model %s", streamOp, ss.id, model)
	resp := &inference.ModelStreamInferResponse{}
	resp.SetErrorMessage(MissMessage)
	return resp
}

// MissMessage is the error_message carried by an in-band stream miss.
var MissMessage = status.Error(codes.Unavailable, streamOp+": no recorded response").Error()

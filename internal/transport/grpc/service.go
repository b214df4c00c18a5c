// Package grpc serves the inference protocol from the recording store,
// forwarding to real backends and capturing their replies in record mode.
package grpc

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/louisbranch/inference-mock/internal/backend"
	"github.com/louisbranch/inference-mock/internal/catalog"
	apperrors "github.com/louisbranch/inference-mock/internal/platform/errors"
	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"github.com/louisbranch/inference-mock/internal/recording"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Mode selects where responses come from.
type Mode int

const (
	// ModeReplay answers only from the recording store.
	ModeReplay Mode = iota
	// ModeRecord forwards to the backends and appends their replies.
	ModeRecord
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	if m == ModeRecord {
		return "record"
	}
	return "replay"
}

// InferenceService implements the inference gRPC service.
type InferenceService struct {
	inference.UnimplementedGRPCInferenceServiceServer

	mode  Mode
	store *recording.Store
	pool  *backend.Pool
}

// NewInferenceService creates the service. The pool is required in record
// mode and ignored in replay mode.
func NewInferenceService(mode Mode, store *recording.Store, pool *backend.Pool) (*InferenceService, error) {
	if store == nil {
		return nil, fmt.Errorf("recording store is required")
	}
	if mode == ModeRecord && pool == nil {
		return nil, fmt.Errorf("backend pool is required in record mode")
	}
	if mode == ModeReplay {
		pool = nil
	}
	return &InferenceService{mode: mode, store: store, pool: pool}, nil
}

// Mode reports the service mode.
func (s *InferenceService) Mode() Mode { return s.mode }

// ServerLive always reports live.
func (s *InferenceService) ServerLive(context.Context, *inference.ServerLiveRequest) (*inference.ServerLiveResponse, error) {
	resp := &inference.ServerLiveResponse{}
	resp.SetLive(true)
	return resp, nil
}

// ServerReady always reports ready.
func (s *InferenceService) ServerReady(context.Context, *inference.ServerReadyRequest) (*inference.ServerReadyResponse, error) {
	resp := &inference.ServerReadyResponse{}
	resp.SetReady(true)
	return resp, nil
}

// ModelReady reports whether the model is on the allow-list.
func (s *InferenceService) ModelReady(_ context.Context, in *inference.ModelReadyRequest) (*inference.ModelReadyResponse, error) {
	name := in.GetName()
	log.Printf("model_ready: %q", name)
	resp := &inference.ModelReadyResponse{}
	if !catalog.IsKnown(name) {
		log.Printf("model_ready: model not found: %s", name)
		return resp, nil
	}
	resp.SetReady(true)
	return resp, nil
}

// ModelInfer returns the next recorded response for the model, or in record
// mode forwards the request and records the reply.
func (s *InferenceService) ModelInfer(ctx context.Context, in *inference.ModelInferRequest) (*inference.ModelInferResponse, error) {
	const op = "model_infer"
	model := in.GetModelName()
	log.Printf("%s: %q", op, model)
	if err := requireKnownModel(op, model); err != nil {
		return nil, err
	}

	if s.mode == ModeRecord {
		conn, err := s.pool.Resolve(model)
		if err != nil {
			return nil, err
		}
		var resp *inference.ModelInferResponse
		err = conn.WithClient(func(client inference.GRPCInferenceServiceClient) error {
			out, err := client.ModelInfer(ctx, in)
			if err != nil {
				log.Printf("%s: error: %v", op, err)
				return err
			}
			payload, err := recording.Encode(out)
			if err != nil {
				return apperrors.Wrap(apperrors.CodePersistenceFailure, op+": record response", err)
			}
			s.store.AppendInfer(model, payload)
			resp = out
			return nil
		})
		return resp, err
	}

	payload, ok := s.store.PopInfer(model)
	if !ok {
		return nil, recordingExhausted(ctx, op, model)
	}
	resp := &inference.ModelInferResponse{}
	if err := recording.Decode(payload, resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, op+": recorded response", err)
	}
	return resp, nil
}

// ModelConfig returns the next recorded configuration for this exact
// request, or in record mode forwards it and records the reply.
func (s *InferenceService) ModelConfig(ctx context.Context, in *inference.ModelConfigRequest) (*inference.ModelConfigResponse, error) {
	const op = "model_config"
	model := in.GetName()
	log.Printf("%s: %q", op, model)
	if err := requireKnownModel(op, model); err != nil {
		return nil, err
	}
	key, err := recording.ConfigKey(in)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, op+": request key", err)
	}

	if s.mode == ModeRecord {
		conn, err := s.pool.Resolve(model)
		if err != nil {
			return nil, err
		}
		var resp *inference.ModelConfigResponse
		err = conn.WithClient(func(client inference.GRPCInferenceServiceClient) error {
			out, err := client.ModelConfig(ctx, in)
			if err != nil {
				log.Printf("%s: error: %v", op, err)
				return err
			}
			payload, err := recording.Encode(out)
			if err != nil {
				return apperrors.Wrap(apperrors.CodePersistenceFailure, op+": record response", err)
			}
			s.store.AppendConfig(model, key, payload)
			resp = out
			return nil
		})
		return resp, err
	}

	payload, ok := s.store.PopConfig(model, key)
	if !ok {
		return nil, recordingExhausted(ctx, op, model)
	}
	resp := &inference.ModelConfigResponse{}
	if err := recording.Decode(payload, resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, op+": recorded response", err)
	}
	return resp, nil
}

// NotImplemented rejects protocol methods the fixture does not serve.
func (s *InferenceService) NotImplemented(_ context.Context, method string) error {
	name := snakeCase(method)
	log.Printf("Not implemented: %s", name)
	return apperrors.WithMetadata(apperrors.CodeUnimplementedMethod, name+" not implemented",
		map[string]string{"method": method})
}

func requireKnownModel(op, model string) error {
	if catalog.IsKnown(model) {
		return nil
	}
	log.Printf("%s: model not found: %s", op, model)
	return apperrors.WithMetadata(apperrors.CodeUnknownModel,
		fmt.Sprintf("%s: model not found: %s", op, model),
		map[string]string{"model": model})
}

func recordingExhausted(ctx context.Context, op, model string) error {
	trace.SpanFromContext(ctx).AddEvent("recording.miss", trace.WithAttributes(
		attribute.String("inference_mock.model", model),
		attribute.String("inference_mock.operation", op),
	))
	log.Printf("%s: no recorded response for model %s", op, model)
	return apperrors.WithMetadata(apperrors.CodeRecordingExhausted, op+": no recorded response",
		map[string]string{"model": model})
}

// snakeCase turns a protocol method name such as ModelMetadata into
// model_metadata.
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

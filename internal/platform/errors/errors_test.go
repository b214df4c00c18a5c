package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeUnknownModel, codes.NotFound},
		{CodeRecordingExhausted, codes.Unavailable},
		{CodeBackendFailure, codes.Unavailable},
		{CodeUnimplementedMethod, codes.Unimplemented},
		{CodePersistenceFailure, codes.Internal},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.code, tt.want, got)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load: %w", Wrap(CodePersistenceFailure, "open archive", stderrors.New("boom")))
	if !stderrors.Is(err, New(CodePersistenceFailure, "")) {
		t.Fatal("expected wrapped error to match persistence failure")
	}
	if stderrors.Is(err, New(CodeUnknownModel, "")) {
		t.Fatal("did not expect match on a different code")
	}
	if CodeOf(err) != CodePersistenceFailure {
		t.Fatalf("expected code %s, got %s", CodePersistenceFailure, CodeOf(err))
	}
	if CodeOf(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for plain errors")
	}
}

func TestGRPCStatusCarriesReason(t *testing.T) {
	err := WithMetadata(CodeRecordingExhausted, "model_infer: no recorded response", map[string]string{"model": "ner"})

	st := status.Convert(err)
	if st.Code() != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %s", st.Code())
	}
	if st.Message() != "model_infer: no recorded response" {
		t.Fatalf("unexpected message %q", st.Message())
	}
	if got := ReasonOf(st.Err()); got != string(CodeRecordingExhausted) {
		t.Fatalf("expected reason %s, got %q", CodeRecordingExhausted, got)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(CodeBackendFailure, "dial llama_7b", stderrors.New("connection refused"))
	if err.Error() != "dial llama_7b: connection refused" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if ReasonOf(stderrors.New("plain")) != "" {
		t.Fatal("expected no reason for non-status errors")
	}
}

// Package errors provides the fixture's structured error taxonomy and its
// mapping onto gRPC status codes.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeUnknownModel means the model name is not on the allow-list.
	CodeUnknownModel Code = "UNKNOWN_MODEL"
	// CodeRecordingExhausted means replay found no recorded response left.
	CodeRecordingExhausted Code = "RECORDING_EXHAUSTED"
	// CodeBackendFailure means record mode could not reach a backend.
	CodeBackendFailure Code = "BACKEND_FAILURE"
	// CodePersistenceFailure means the recording archive could not be read or written.
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	// CodeUnimplementedMethod marks protocol methods the fixture does not serve.
	CodeUnimplementedMethod Code = "UNIMPLEMENTED_METHOD"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeUnknownModel:
		return codes.NotFound

	// Unavailable - a consumer may retry or stop asking
	case CodeRecordingExhausted,
		CodeBackendFailure:
		return codes.Unavailable

	case CodeUnimplementedMethod:
		return codes.Unimplemented

	default:
		return codes.Internal
	}
}

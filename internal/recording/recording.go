// Package recording holds captured inference traffic: the per-model request
// and response logs consulted in replay mode and appended to in record mode,
// plus the gzip archive they are persisted to between runs.
package recording

import (
	"time"
)

// Recording holds the captured traffic of one model. Every queue is FIFO:
// record mode appends at the tail and replay mode consumes from the head.
type Recording struct {
	// Config maps a canonical ModelConfigRequest encoding to the responses
	// captured for it, in arrival order.
	Config map[string][][]byte `json:"model_config"`
	// Infer holds ModelInferResponse payloads in arrival order.
	Infer [][]byte `json:"model_infer"`
	// StreamInfer holds ModelStreamInferResponse payloads in arrival order.
	StreamInfer [][]byte `json:"model_stream_infer"`

	// pending tracks streamed requests that were forwarded but not yet matched
	// with a backend response. It is never persisted.
	pending []PendingMarker
}

// PendingMarker records that a streamed request was forwarded to a backend.
type PendingMarker struct {
	// Session is the stream session that forwarded the request.
	Session   string
	RequestID string
	Forwarded time.Time
}

// Stats summarizes the queue depths of one recording.
type Stats struct {
	Config      int
	Infer       int
	StreamInfer int
	Pending     int
}

func newRecording() *Recording {
	return &Recording{Config: make(map[string][][]byte)}
}

func (r *Recording) stats() Stats {
	stats := Stats{
		Infer:       len(r.Infer),
		StreamInfer: len(r.StreamInfer),
		Pending:     len(r.pending),
	}
	for _, queue := range r.Config {
		stats.Config += len(queue)
	}
	return stats
}

// clone copies the persisted queues. Payload byte slices are shared; they are
// never mutated after being appended.
func (r *Recording) clone() *Recording {
	out := &Recording{
		Config:      make(map[string][][]byte, len(r.Config)),
		Infer:       append([][]byte(nil), r.Infer...),
		StreamInfer: append([][]byte(nil), r.StreamInfer...),
	}
	for key, queue := range r.Config {
		out.Config[key] = append([][]byte(nil), queue...)
	}
	return out
}

func popFront[T any](queue *[]T) (T, bool) {
	var zero T
	if len(*queue) == 0 {
		return zero, false
	}
	head := (*queue)[0]
	(*queue)[0] = zero
	*queue = (*queue)[1:]
	return head, true
}

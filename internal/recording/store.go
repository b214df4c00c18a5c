package recording

import (
	"slices"
	"sync"
)

// Store maps model names to their recordings. A single mutex guards every
// model and is only held for the duration of one store operation.
type Store struct {
	mu     sync.Mutex
	models map[string]*Recording
}

// NewStore returns an empty store for record mode.
func NewStore() *Store {
	return &Store{models: make(map[string]*Recording)}
}

// NewStoreFromArchive returns a store populated from a decoded archive.
// Pending markers always start empty.
func NewStoreFromArchive(archive *Archive) *Store {
	s := NewStore()
	if archive == nil {
		return s
	}
	for model, rec := range archive.Models {
		if rec == nil {
			continue
		}
		loaded := rec.clone()
		loaded.pending = nil
		s.models[model] = loaded
	}
	return s
}

// Update runs fn against the recording for model, creating it when absent.
// fn runs with the store lock held and must not block.
func (s *Store) Update(model string, fn func(*Recording)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.getOrCreate(model))
}

func (s *Store) getOrCreate(model string) *Recording {
	rec, ok := s.models[model]
	if !ok {
		rec = newRecording()
		s.models[model] = rec
	}
	return rec
}

// AppendInfer appends a ModelInferResponse payload to the model's infer log.
func (s *Store) AppendInfer(model string, payload []byte) {
	s.Update(model, func(rec *Recording) {
		rec.Infer = append(rec.Infer, payload)
	})
}

// PopInfer removes and returns the head of the model's infer log.
func (s *Store) PopInfer(model string) (payload []byte, ok bool) {
	s.Update(model, func(rec *Recording) {
		payload, ok = popFront(&rec.Infer)
	})
	return payload, ok
}

// AppendConfig appends a ModelConfigResponse payload under the request key.
func (s *Store) AppendConfig(model, key string, payload []byte) {
	s.Update(model, func(rec *Recording) {
		rec.Config[key] = append(rec.Config[key], payload)
	})
}

// PopConfig removes and returns the head of the queue stored under key. An
// absent key behaves as an empty queue.
func (s *Store) PopConfig(model, key string) (payload []byte, ok bool) {
	s.Update(model, func(rec *Recording) {
		queue, exists := rec.Config[key]
		if !exists {
			return
		}
		payload, ok = popFront(&queue)
		rec.Config[key] = queue
	})
	return payload, ok
}

// AppendPending records that a streamed request is about to be forwarded.
func (s *Store) AppendPending(model string, marker PendingMarker) {
	s.Update(model, func(rec *Recording) {
		rec.pending = append(rec.pending, marker)
	})
}

// CapturePending matches a backend stream response against the oldest
// pending marker of session. On a match the marker is consumed and payload is
// appended to the stream log in the same critical section. ok is false when
// the session has no request outstanding, in which case nothing is recorded.
func (s *Store) CapturePending(model, session string, payload []byte) (marker PendingMarker, ok bool) {
	s.Update(model, func(rec *Recording) {
		i := slices.IndexFunc(rec.pending, func(m PendingMarker) bool {
			return m.Session == session
		})
		if i < 0 {
			return
		}
		marker, ok = rec.pending[i], true
		rec.pending = slices.Delete(rec.pending, i, i+1)
		rec.StreamInfer = append(rec.StreamInfer, payload)
	})
	return marker, ok
}

// DropPending removes every marker session still has outstanding for model
// and returns how many were removed.
func (s *Store) DropPending(model, session string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.models[model]
	if !ok {
		return 0
	}
	before := len(rec.pending)
	rec.pending = slices.DeleteFunc(rec.pending, func(m PendingMarker) bool {
		return m.Session == session
	})
	return before - len(rec.pending)
}

// PopStream removes and returns the head of the model's stream log.
func (s *Store) PopStream(model string) (payload []byte, ok bool) {
	s.Update(model, func(rec *Recording) {
		payload, ok = popFront(&rec.StreamInfer)
	})
	return payload, ok
}

// Stats reports the queue depths for model without creating it.
func (s *Store) Stats(model string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.models[model]
	if !ok {
		return Stats{}
	}
	return rec.stats()
}

// Models returns the sorted names of every model with a recording.
func (s *Store) Models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Snapshot returns a deep copy of the persisted state.
func (s *Store) Snapshot() *Archive {
	s.mu.Lock()
	defer s.mu.Unlock()
	archive := &Archive{Models: make(map[string]*Recording, len(s.models))}
	for model, rec := range s.models {
		archive.Models[model] = rec.clone()
	}
	return archive
}

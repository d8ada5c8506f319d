package store

import (
	"context"
	"sync"

	"github.com/ssouza/wadispatch/internal/message"
)

// MemoryStore keeps message requests in process memory, in insertion order.
// It is the default backend; records do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*message.Request
	order []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*message.Request)}
}

// Put stores a request. An existing record with the same id is replaced
// without changing its position in the listing order.
func (s *MemoryStore) Put(_ context.Context, req *message.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[req.ID]; !exists {
		s.order = append(s.order, req.ID)
	}
	s.byID[req.ID] = cloneRequest(req)
	return nil
}

// Get returns a copy of the stored request, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*message.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(req), nil
}

// List returns all stored requests in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]*message.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*message.Request, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneRequest(s.byID[id]))
	}
	return out, nil
}

// UpdateStatus sets the status of an existing request.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status message.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	return nil
}

// SetResults records delivery results and the final status.
func (s *MemoryStore) SetResults(_ context.Context, id string, results []message.DeliveryResult, status message.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	req.Results = append([]message.DeliveryResult(nil), results...)
	req.Status = status
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() {}

// cloneRequest copies a request so callers cannot mutate stored state.
func cloneRequest(req *message.Request) *message.Request {
	cp := *req
	cp.Recipients = append([]message.Recipient(nil), req.Recipients...)
	if req.Attachment != nil {
		att := *req.Attachment
		cp.Attachment = &att
	}
	if req.ScheduledAt != nil {
		at := *req.ScheduledAt
		cp.ScheduledAt = &at
	}
	cp.Results = append([]message.DeliveryResult(nil), req.Results...)
	return &cp
}

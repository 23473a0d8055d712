// Package session tracks per-conversation iteration budgets for the
// router.
package session

import (
	"context"
	"sync"
)

// Store counts capability invocations per conversation so the router can
// bound total work across turns.
type Store interface {
	// Iterations returns the count consumed so far by the session.
	Iterations(ctx context.Context, sessionID string) (int, error)

	// AddIterations records n more iterations and returns the new total.
	AddIterations(ctx context.Context, sessionID string, n int) (int, error)

	// Reset clears the session's counter.
	Reset(ctx context.Context, sessionID string) error
}

// MemoryStore is the in-process default.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Iterations(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[sessionID], nil
}

func (s *MemoryStore) AddIterations(ctx context.Context, sessionID string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[sessionID] += n
	return s.counts[sessionID], nil
}

func (s *MemoryStore) Reset(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, sessionID)
	return nil
}

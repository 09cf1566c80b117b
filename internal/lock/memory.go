package lock

import (
	"context"
	"sync"
	"time"

	"github.com/shiftfill/outreach/internal/entities"
)

// MemoryStore keeps locks in process memory. It gives no exclusivity across processes and does not survive
// restarts, so it is only meant for tests and single-process tooling.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]entities.ProcessingLock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]entities.ProcessingLock)}
}

func (s *MemoryStore) Create(_ context.Context, lock entities.ProcessingLock) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locks[lock.OpeningID]; exists {
		return false, nil
	}
	s.locks[lock.OpeningID] = lock
	return true, nil
}

func (s *MemoryStore) TakeOver(_ context.Context, lock entities.ProcessingLock, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.locks[lock.OpeningID]
	if exists && current.HeldAt(now) && current.HolderID != lock.HolderID {
		return false, nil
	}
	s.locks[lock.OpeningID] = lock
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, openingID string) (*entities.ProcessingLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.locks[openingID]
	if !exists {
		return nil, nil
	}
	return &current, nil
}

func (s *MemoryStore) Deactivate(_ context.Context, openingID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.locks[openingID]
	if !exists || current.Token != token {
		return nil
	}
	current.Active = false
	s.locks[openingID] = current
	return nil
}

func (s *MemoryStore) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, current := range s.locks {
		if current.Active && !current.ExpiresAt.After(now) {
			current.Active = false
			s.locks[id] = current
			count++
		}
	}
	return count, nil
}

// Package lock implements the opening-scoped processing lock shared by the outreach engine and human
// coordinators. Exclusivity is arbitrated by the Store; Manager adds the acquire/release/status contract.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shiftfill/outreach/internal/entities"
)

var ErrLockConflict = errors.New("opening is locked by another holder")

// ConflictError describes the claim that blocked an Acquire.
type ConflictError struct {
	OpeningID string
	HolderID  string
	Reason    string
	ExpiresAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("opening %s is locked by %s (%s) until %s",
		e.OpeningID, e.HolderID, e.Reason, e.ExpiresAt.Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error {
	return ErrLockConflict
}

// Store persists locks. Create and TakeOver must be atomic in the backend: two concurrent callers
// for the same opening never both observe success.
type Store interface {
	// Create inserts a new row and reports false if one already exists for the opening.
	Create(ctx context.Context, lock entities.ProcessingLock) (bool, error)
	// TakeOver overwrites the row only if it is inactive, expired at now, or already owned by lock.HolderID.
	TakeOver(ctx context.Context, lock entities.ProcessingLock, now time.Time) (bool, error)
	Get(ctx context.Context, openingID string) (*entities.ProcessingLock, error)
	Deactivate(ctx context.Context, openingID, token string) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type Handle struct {
	OpeningID  string
	HolderID   string
	Reason     string
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

type Status struct {
	OpeningID  string    `json:"opening_id"`
	Locked     bool      `json:"locked"`
	HolderID   string    `json:"holder,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Acquire makes exactly one attempt. On conflict the returned error matches ErrLockConflict and
// is a *ConflictError; retrying is up to the caller.
func (m *Manager) Acquire(ctx context.Context, openingID, holderID, reason string, ttl time.Duration) (Handle, error) {
	if openingID == "" || holderID == "" {
		return Handle{}, errors.New("opening id and holder id are required")
	}
	if ttl <= 0 {
		return Handle{}, fmt.Errorf("lock ttl must be positive, got %v", ttl)
	}

	now := m.now().UTC()
	record := entities.ProcessingLock{
		OpeningID:  openingID,
		HolderID:   holderID,
		Reason:     reason,
		Token:      uuid.NewString(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		Active:     true,
	}

	created, err := m.store.Create(ctx, record)
	if err != nil {
		return Handle{}, fmt.Errorf("create lock for opening %s: %w", openingID, err)
	}
	if !created {
		taken, err := m.store.TakeOver(ctx, record, now)
		if err != nil {
			return Handle{}, fmt.Errorf("take over lock for opening %s: %w", openingID, err)
		}
		if !taken {
			return Handle{}, m.conflict(ctx, openingID)
		}
	}

	return Handle{
		OpeningID:  record.OpeningID,
		HolderID:   record.HolderID,
		Reason:     record.Reason,
		Token:      record.Token,
		AcquiredAt: record.AcquiredAt,
		ExpiresAt:  record.ExpiresAt,
	}, nil
}

func (m *Manager) conflict(ctx context.Context, openingID string) error {
	current, err := m.store.Get(ctx, openingID)
	if err != nil || current == nil {
		return &ConflictError{OpeningID: openingID}
	}
	return &ConflictError{
		OpeningID: openingID,
		HolderID:  current.HolderID,
		Reason:    current.Reason,
		ExpiresAt: current.ExpiresAt,
	}
}

// Release is a no-op for already released, expired or taken-over locks.
func (m *Manager) Release(ctx context.Context, handle Handle) error {
	if handle.OpeningID == "" || handle.Token == "" {
		return nil
	}
	if err := m.store.Deactivate(ctx, handle.OpeningID, handle.Token); err != nil {
		return fmt.Errorf("release lock for opening %s: %w", handle.OpeningID, err)
	}
	return nil
}

func (m *Manager) Status(ctx context.Context, openingID string) (Status, error) {
	current, err := m.store.Get(ctx, openingID)
	if err != nil {
		return Status{}, fmt.Errorf("read lock for opening %s: %w", openingID, err)
	}
	if current == nil || !current.HeldAt(m.now()) {
		return Status{OpeningID: openingID}, nil
	}
	return Status{
		OpeningID:  openingID,
		Locked:     true,
		HolderID:   current.HolderID,
		Reason:     current.Reason,
		AcquiredAt: current.AcquiredAt,
		ExpiresAt:  current.ExpiresAt,
	}, nil
}

// Sweep marks every time-expired lock inactive and returns how many were changed.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeactivateExpired(ctx, m.now().UTC())
}

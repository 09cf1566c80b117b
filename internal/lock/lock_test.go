package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager() (*Manager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)}
	return NewManager(NewMemoryStore()).WithClock(clock.Now), clock
}

func Test_Acquire_SecondHolderGetsConflict(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	handle, err := manager.Acquire(ctx, "op-1", "engine-1", "automated outreach", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.Token)

	_, err = manager.Acquire(ctx, "op-1", "coordinator-jane", "manual call", time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockConflict))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "engine-1", conflict.HolderID)
	assert.Equal(t, "automated outreach", conflict.Reason)
	assert.Equal(t, handle.ExpiresAt, conflict.ExpiresAt)
}

func Test_Acquire_SameHolderRefreshesClaim(t *testing.T) {
	ctx := context.Background()
	manager, clock := newManager()

	first, err := manager.Acquire(ctx, "op-1", "engine-1", "outreach", time.Hour)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	second, err := manager.Acquire(ctx, "op-1", "engine-1", "outreach", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
}

func Test_Acquire_TakesOverExpiredLock(t *testing.T) {
	ctx := context.Background()
	manager, clock := newManager()

	_, err := manager.Acquire(ctx, "op-1", "engine-1", "outreach", time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	status, err := manager.Status(ctx, "op-1")
	require.NoError(t, err)
	assert.False(t, status.Locked)

	handle, err := manager.Acquire(ctx, "op-1", "coordinator-jane", "manual", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "coordinator-jane", handle.HolderID)
}

func Test_Release_IsIdempotentAndFreesOpening(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	handle, err := manager.Acquire(ctx, "op-1", "engine-1", "outreach", time.Hour)
	require.NoError(t, err)

	require.NoError(t, manager.Release(ctx, handle))
	require.NoError(t, manager.Release(ctx, handle))
	require.NoError(t, manager.Release(ctx, Handle{}))

	status, err := manager.Status(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, Status{OpeningID: "op-1"}, status)

	_, err = manager.Acquire(ctx, "op-1", "coordinator-jane", "manual", time.Hour)
	assert.NoError(t, err)
}

func Test_Release_StaleHandleDoesNotFreeNewHolder(t *testing.T) {
	ctx := context.Background()
	manager, clock := newManager()

	stale, err := manager.Acquire(ctx, "op-1", "engine-1", "outreach", time.Minute)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, err = manager.Acquire(ctx, "op-1", "coordinator-jane", "manual", time.Hour)
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, stale))

	status, err := manager.Status(ctx, "op-1")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, "coordinator-jane", status.HolderID)
}

func Test_Status_ReportsHolder(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	status, err := manager.Status(ctx, "op-unknown")
	require.NoError(t, err)
	assert.False(t, status.Locked)

	handle, err := manager.Acquire(ctx, "op-1", "engine-1", "automated outreach", time.Hour)
	require.NoError(t, err)

	status, err = manager.Status(ctx, "op-1")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, "engine-1", status.HolderID)
	assert.Equal(t, "automated outreach", status.Reason)
	assert.Equal(t, handle.AcquiredAt, status.AcquiredAt)
}

func Test_Acquire_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	_, err := manager.Acquire(ctx, "", "engine-1", "", time.Hour)
	assert.Error(t, err)
	_, err = manager.Acquire(ctx, "op-1", "", "", time.Hour)
	assert.Error(t, err)
	_, err = manager.Acquire(ctx, "op-1", "engine-1", "", 0)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLockConflict))
}

func Test_Sweep_DeactivatesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	manager, clock := newManager()

	_, err := manager.Acquire(ctx, "op-short", "engine-1", "", time.Minute)
	require.NoError(t, err)
	_, err = manager.Acquire(ctx, "op-long", "engine-1", "", time.Hour)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	swept, err := manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	swept, err = manager.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), swept)

	status, err := manager.Status(ctx, "op-long")
	require.NoError(t, err)
	assert.True(t, status.Locked)
}

func Test_Acquire_ConcurrentHolders_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			holder := "holder-" + string(rune('a'+i))
			if _, err := manager.Acquire(ctx, "op-1", holder, "race", time.Hour); err == nil {
				wins.Add(1)
			} else {
				assert.True(t, errors.Is(err, ErrLockConflict))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

func newTestRegistry(t *testing.T) *LockRegistry {
	t.Helper()
	r := NewLockRegistry(nil)
	t.Cleanup(r.Close)
	return r
}

func TestAcquireRelease(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	release, err := r.Acquire(ctx, Key("t1", "1.1.1.1|Chrome|Linux"))
	require.NoError(t, err)
	release()

	// Re-acquire after release must succeed immediately.
	release, err = r.Acquire(ctx, Key("t1", "1.1.1.1|Chrome|Linux"))
	require.NoError(t, err)
	release()
}

func TestAcquireContentionTimesOut(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	prev := config.LockWaitTimeout
	config.LockWaitTimeout = 50 * time.Millisecond
	t.Cleanup(func() { config.LockWaitTimeout = prev })

	key := Key("t1", "1.1.1.1|Chrome|Linux")
	release, err := r.Acquire(ctx, key)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = r.Acquire(ctx, key)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrLockContention)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	r := newTestRegistry(t)

	key := Key("t1", "1.1.1.1|Chrome|Linux")
	release, err := r.Acquire(context.Background(), key)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = r.Acquire(ctx, key)
	assert.ErrorIs(t, err, identity.ErrLockContention)
}

func TestDisjointKeysDoNotContend(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	release1, err := r.Acquire(ctx, Key("t1", "1.1.1.1|Chrome|Linux"))
	require.NoError(t, err)
	defer release1()

	// Different cluster, same tenant.
	release2, err := r.Acquire(ctx, Key("t1", "2.2.2.2|Chrome|Linux"))
	require.NoError(t, err)
	defer release2()

	// Same cluster, different tenant.
	release3, err := r.Acquire(ctx, Key("t2", "1.1.1.1|Chrome|Linux"))
	require.NoError(t, err)
	defer release3()
}

func TestSerializesSameKey(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	key := Key("t1", "1.1.1.1|Chrome|Linux")

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := r.Acquire(ctx, key)
			if err != nil {
				return
			}
			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "two holders inside the same cluster lock")
}

func TestReapIdleKeepsHeldLocks(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	held, err := r.Acquire(ctx, Key("t1", "held"))
	require.NoError(t, err)
	defer held()

	release, err := r.Acquire(ctx, Key("t1", "idle"))
	require.NoError(t, err)
	release()
	require.Equal(t, 2, r.Size())

	prev := config.LockIdleReapAfter
	config.LockIdleReapAfter = time.Nanosecond
	t.Cleanup(func() { config.LockIdleReapAfter = prev })

	time.Sleep(time.Millisecond)
	r.reapIdle()

	assert.Equal(t, 1, r.Size(), "held lock must survive the reap, idle one must not")
}

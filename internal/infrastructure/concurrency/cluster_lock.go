// Package concurrency provides per-cluster exclusive locking for identity
// resolution and propagation. Operations on the same visitor cluster are
// serialized; disjoint clusters proceed fully in parallel.
package concurrency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// clusterLock is a single-slot semaphore with bookkeeping for idle reaping.
type clusterLock struct {
	sem      chan struct{}
	waiters  int
	lastUsed time.Time
}

// LockRegistry hands out exclusive per-key locks with a bounded wait. Keys are
// tenant-qualified correlation keys, so clusters in different tenants never
// contend with each other.
type LockRegistry struct {
	mu     sync.Mutex
	locks  map[string]*clusterLock
	logger *logging.ChanneledLogger
	stop   chan struct{}
}

// NewLockRegistry creates a lock registry and starts its idle-reap loop.
func NewLockRegistry(logger *logging.ChanneledLogger) *LockRegistry {
	r := &LockRegistry{
		locks:  make(map[string]*clusterLock),
		logger: logger,
		stop:   make(chan struct{}),
	}
	go r.reapLoop()
	return r
}

// Key builds a tenant-qualified lock key from a correlation key.
func Key(tenantID, correlationKey string) string {
	return tenantID + "::" + correlationKey
}

// Acquire takes the exclusive lock for key, waiting at most the configured
// bound. On success it returns a release function; on timeout it returns a
// retryable contention error. The lock must never be held across a network
// round-trip to the identification oracle.
func (r *LockRegistry) Acquire(ctx context.Context, key string) (func(), error) {
	lock := r.checkout(key)

	timer := time.NewTimer(config.LockWaitTimeout)
	defer timer.Stop()

	select {
	case lock.sem <- struct{}{}:
		return func() { r.release(key, lock) }, nil
	case <-timer.C:
		r.checkin(key, lock)
		if r.logger != nil {
			r.logger.Alert().Warn("Cluster lock wait timed out", "key", key, "timeout", config.LockWaitTimeout)
		}
		return nil, fmt.Errorf("%w: cluster %s busy after %s", identity.ErrLockContention, key, config.LockWaitTimeout)
	case <-ctx.Done():
		r.checkin(key, lock)
		return nil, fmt.Errorf("%w: %v", identity.ErrLockContention, ctx.Err())
	}
}

func (r *LockRegistry) checkout(key string) *clusterLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, exists := r.locks[key]
	if !exists {
		lock = &clusterLock{sem: make(chan struct{}, 1)}
		r.locks[key] = lock
	}
	lock.waiters++
	lock.lastUsed = time.Now()
	return lock
}

func (r *LockRegistry) checkin(key string, lock *clusterLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock.waiters--
	lock.lastUsed = time.Now()
}

func (r *LockRegistry) release(key string, lock *clusterLock) {
	<-lock.sem
	r.checkin(key, lock)
}

// reapLoop drops lock entries that have been idle with no waiters, keeping the
// registry bounded under churny correlation keys.
func (r *LockRegistry) reapLoop() {
	ticker := time.NewTicker(config.LockIdleReapAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reapIdle()
		case <-r.stop:
			return
		}
	}
}

func (r *LockRegistry) reapIdle() {
	cutoff := time.Now().Add(-config.LockIdleReapAfter)

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, lock := range r.locks {
		if lock.waiters == 0 && len(lock.sem) == 0 && lock.lastUsed.Before(cutoff) {
			delete(r.locks, key)
		}
	}
}

// Close stops the reap loop.
func (r *LockRegistry) Close() {
	close(r.stop)
}

// Size reports the number of live lock entries.
func (r *LockRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

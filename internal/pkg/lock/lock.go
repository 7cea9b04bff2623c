// Package lock provides Redis backed mutual exclusion across service
// instances using the RedLock algorithm.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyKey is returned when an empty lock key is provided.
	ErrEmptyKey = errors.New("lock key cannot be empty")
	// ErrNilFn is returned when WithLock is called without a function.
	ErrNilFn = errors.New("lock function is nil")
	// ErrNotAcquired is returned when the lock stays taken for all tries.
	ErrNotAcquired = errors.New("lock not acquired")
)

// Options configures lock acquisition.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits request scoped critical sections.
func DefaultOptions() Options {
	return Options{
		Expiry:     30 * time.Second,
		Tries:      40,
		RetryDelay: 250 * time.Millisecond,
	}
}

// Manager hands out named distributed mutexes.
type Manager struct {
	rs   *redsync.Redsync
	opts Options
	log  logrus.FieldLogger
}

// NewManager creates a lock manager on top of a go-redis client.
func NewManager(client *redis.Client, opts Options, log logrus.FieldLogger) *Manager {
	if opts.Tries < 1 {
		opts.Tries = 1
	}
	return &Manager{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
		log:  log,
	}
}

// WithLock runs fn while holding the lock named key. The lock is released
// after fn returns, even when fn fails.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if key == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilFn
	}

	mutex := m.rs.NewMutex(key,
		redsync.WithExpiry(m.opts.Expiry),
		redsync.WithTries(m.opts.Tries),
		redsync.WithRetryDelay(m.opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, err)
	}

	defer func() {
		// Release with a fresh context so a cancelled request still unlocks.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); err != nil || !ok {
			m.log.WithError(err).WithField("lock_key", key).Warn("failed to release lock")
		}
	}()

	return fn(ctx)
}

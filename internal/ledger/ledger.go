// Package ledger manages the lifecycle of per-user, per-stop progress rows:
// ledger initialisation at registration, the sequential completion
// transition, metric updates and aggregate statistics.
//
// Every multi-row mutation runs inside one Store transaction. Transactions
// that fail with mentxu.ErrConflict are retried from scratch, so the
// status checks are re-evaluated against the committed state.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mentxuapp/backend/internal/mentxu"
)

// Store opens transactions over the ledger tables.
type Store interface {
	// InTx runs fn inside a single transaction. A non-nil error from fn
	// rolls back every write fn made.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of storage operations available inside a transaction.
type Tx interface {
	ListStops(ctx context.Context) ([]mentxu.Stop, error)
	GetStop(ctx context.Context, id int64) (mentxu.Stop, error)
	// NextStop returns the stop with the smallest order strictly greater
	// than order, or mentxu.ErrNotFound.
	NextStop(ctx context.Context, order int) (mentxu.Stop, error)
	CreateStop(ctx context.Context, s *mentxu.Stop) error
	SaveStop(ctx context.Context, s mentxu.Stop) error
	DeleteStop(ctx context.Context, id int64) error

	GetUser(ctx context.Context, id int64) (mentxu.User, error)
	UserByDevice(ctx context.Context, deviceID string) (mentxu.User, error)
	CreateUser(ctx context.Context, u *mentxu.User) error
	DeleteUser(ctx context.Context, id int64) error
	UserIDs(ctx context.Context) ([]int64, error)

	// ListProgress returns the user's ledger ordered by stop order.
	ListProgress(ctx context.Context, userID int64) ([]mentxu.StopProgress, error)
	GetProgress(ctx context.Context, id int64) (mentxu.Progress, error)
	ProgressFor(ctx context.Context, userID, stopID int64) (mentxu.Progress, error)
	InsertProgress(ctx context.Context, p *mentxu.Progress) error
	// CompleteProgress writes p as completed if the stored row is still
	// active. It reports false when the row was no longer active.
	CompleteProgress(ctx context.Context, p mentxu.Progress) (bool, error)
	// ActivateProgress moves a locked row to active. It reports false
	// when the row was no longer locked.
	ActivateProgress(ctx context.Context, id int64, at time.Time) (bool, error)
	UpdateMetrics(ctx context.Context, id int64, m mentxu.Metrics) error

	StopStats(ctx context.Context, stopID int64) (mentxu.StopStats, error)
	SystemStats(ctx context.Context) (mentxu.SystemStats, error)
}

// Cache stores computed statistics. Implementations must treat a miss as
// (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context) error
}

const maxAttempts = 3

type Manager struct {
	store   Store
	cache   Cache
	logger  *slog.Logger
	now     func() time.Time
	backoff func(attempt int) time.Duration
}

type Option func(*Manager)

// WithCache caches statistics in c.
func WithCache(c Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// WithClock overrides the time source used for activation and completion
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBackoff sets the wait before retrying a conflicting transaction.
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(m *Manager) { m.backoff = f }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		cache:   nopCache{},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		backoff: linearBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 10 * time.Millisecond
}

// inTx runs fn in a transaction, retrying when the store reports a write
// conflict. The last conflict is returned without waiting.
func (m *Manager) inTx(ctx context.Context, fn func(Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = m.store.InTx(ctx, fn)
		if !errors.Is(err, mentxu.ErrConflict) || attempt == maxAttempts {
			return err
		}
		m.logger.Debug("retrying conflicting transaction", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff(attempt)):
		}
	}
	return err
}

// changed drops cached statistics after a committed mutation. A failure
// only means stale numbers until the cache TTL expires.
func (m *Manager) changed(ctx context.Context) {
	if err := m.cache.Invalidate(ctx); err != nil {
		m.logger.Warn("invalidating stats cache", "error", err)
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any) error         { return nil }
func (nopCache) Invalidate(context.Context) error               { return nil }

package ledger

import (
	"context"
	"strconv"

	"github.com/mentxuapp/backend/internal/mentxu"
)

const systemStatsKey = "stats:system"

func stopStatsKey(id int64) string {
	return "stats:stop:" + strconv.FormatInt(id, 10)
}

// StopStats returns completion counts and the mean completion time for one
// stop.
func (m *Manager) StopStats(ctx context.Context, stopID int64) (mentxu.StopStats, error) {
	var st mentxu.StopStats
	err := m.cached(ctx, stopStatsKey(stopID), &st, func(tx Tx) error {
		var err error
		st, err = tx.StopStats(ctx, stopID)
		return err
	})
	return st, err
}

// SystemStats returns itinerary-wide totals.
func (m *Manager) SystemStats(ctx context.Context) (mentxu.SystemStats, error) {
	var st mentxu.SystemStats
	err := m.cached(ctx, systemStatsKey, &st, func(tx Tx) error {
		var err error
		st, err = tx.SystemStats(ctx)
		return err
	})
	return st, err
}

// cached fills dest from the cache, or computes it with load and stores
// the result. Cache errors degrade to a direct computation.
//
// A load that started before a concurrent mutation committed can store its
// result after that mutation invalidated the cache; the value is then up to
// one TTL stale.
func (m *Manager) cached(ctx context.Context, key string, dest any, load func(Tx) error) error {
	hit, err := m.cache.Get(ctx, key, dest)
	if err != nil {
		m.logger.Warn("reading stats cache", "key", key, "error", err)
	}
	if hit {
		return nil
	}

	if err := m.store.InTx(ctx, load); err != nil {
		return err
	}
	if err := m.cache.Set(ctx, key, dest); err != nil {
		m.logger.Warn("writing stats cache", "key", key, "error", err)
	}
	return nil
}

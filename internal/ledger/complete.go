package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mentxuapp/backend/internal/mentxu"
)

type Completion struct {
	UserID  int64
	StopID  int64
	Metrics mentxu.Metrics
}

type CompletionResult struct {
	Progress mentxu.Progress
	// NextStopID is the stop this call moved from locked to active, if any.
	NextStopID *int64
	// AlreadyCompleted reports an idempotent call: nothing was written.
	AlreadyCompleted bool
}

// Complete marks the user's progress at a stop as completed and unlocks
// the stop that immediately follows it in the itinerary.
//
// Both writes are compare-and-set on status inside one transaction: the
// completed row must still be active and the next row must still be
// locked. A lost race on the completed row is retried and then observed
// as already completed.
func (m *Manager) Complete(ctx context.Context, c Completion) (CompletionResult, error) {
	if err := c.Metrics.Validate(); err != nil {
		return CompletionResult{}, err
	}

	var res CompletionResult
	err := m.inTx(ctx, func(tx Tx) error {
		res = CompletionResult{}

		p, err := tx.ProgressFor(ctx, c.UserID, c.StopID)
		if err != nil {
			return fmt.Errorf("progress for user %d stop %d: %w", c.UserID, c.StopID, err)
		}
		switch p.Status {
		case mentxu.StatusCompleted:
			res.Progress = p
			res.AlreadyCompleted = true
			return nil
		case mentxu.StatusLocked:
			return fmt.Errorf("user %d stop %d: %w", c.UserID, c.StopID, mentxu.ErrStopLocked)
		}

		now := m.now()
		p.Status = mentxu.StatusCompleted
		p.CompletedAt = &now
		c.Metrics.Apply(&p)

		ok, err := tx.CompleteProgress(ctx, p)
		if err != nil {
			return fmt.Errorf("completing progress %d: %w", p.ID, err)
		}
		if !ok {
			return fmt.Errorf("progress %d: %w", p.ID, mentxu.ErrConflict)
		}
		res.Progress = p

		stop, err := tx.GetStop(ctx, c.StopID)
		if err != nil {
			return fmt.Errorf("getting stop %d: %w", c.StopID, err)
		}
		next, err := tx.NextStop(ctx, stop.Order)
		if errors.Is(err, mentxu.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("next stop after %d: %w", stop.Order, err)
		}

		np, err := tx.ProgressFor(ctx, c.UserID, next.ID)
		if errors.Is(err, mentxu.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("progress for next stop %d: %w", next.ID, err)
		}
		if np.Status != mentxu.StatusLocked {
			return nil
		}
		activated, err := tx.ActivateProgress(ctx, np.ID, now)
		if err != nil {
			return fmt.Errorf("activating progress %d: %w", np.ID, err)
		}
		if activated {
			res.NextStopID = &next.ID
		}
		return nil
	})
	if err != nil {
		return CompletionResult{}, err
	}

	if res.AlreadyCompleted {
		return res, nil
	}
	m.changed(ctx)
	m.logger.Info("stop completed",
		"user_id", c.UserID,
		"stop_id", c.StopID,
		"score", res.Progress.Score,
	)
	if res.NextStopID != nil {
		m.logger.Info("stop activated", "user_id", c.UserID, "stop_id", *res.NextStopID)
	}
	return res, nil
}

// UpdateMetrics overwrites the supplied gameplay metrics of one progress
// row. Status is never changed. An empty update is a no-op that still
// returns the current row.
func (m *Manager) UpdateMetrics(ctx context.Context, progressID int64, metrics mentxu.Metrics) (mentxu.Progress, error) {
	if err := metrics.Validate(); err != nil {
		return mentxu.Progress{}, err
	}

	var p mentxu.Progress
	err := m.inTx(ctx, func(tx Tx) error {
		var err error
		if p, err = tx.GetProgress(ctx, progressID); err != nil {
			return fmt.Errorf("getting progress %d: %w", progressID, err)
		}
		if metrics.Empty() {
			return nil
		}
		if err := tx.UpdateMetrics(ctx, progressID, metrics); err != nil {
			return fmt.Errorf("updating progress %d: %w", progressID, err)
		}
		metrics.Apply(&p)
		return nil
	})
	if err != nil {
		return mentxu.Progress{}, err
	}
	if !metrics.Empty() {
		m.changed(ctx)
	}
	return p, nil
}

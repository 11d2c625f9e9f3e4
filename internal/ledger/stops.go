package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/mentxuapp/backend/internal/mentxu"
)

// AddStop creates a stop and gives every existing user a progress row for
// it, so each ledger keeps one row per stop.
func (m *Manager) AddStop(ctx context.Context, s mentxu.Stop) (mentxu.Stop, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.ShortName = strings.TrimSpace(s.ShortName)
	if s.ShortName == "" {
		s.ShortName = s.Name
	}
	if err := s.Validate(); err != nil {
		return mentxu.Stop{}, err
	}

	var created mentxu.Stop
	err := m.inTx(ctx, func(tx Tx) error {
		created = s
		created.ID = 0
		if err := tx.CreateStop(ctx, &created); err != nil {
			return fmt.Errorf("creating stop: %w", err)
		}
		users, err := tx.UserIDs(ctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		for _, uid := range users {
			p := mentxu.Progress{UserID: uid, StopID: created.ID, Status: mentxu.StatusLocked}
			if err := tx.InsertProgress(ctx, &p); err != nil {
				return fmt.Errorf("creating progress for user %d: %w", uid, err)
			}
		}
		return m.reconcile(ctx, tx, users)
	})
	if err != nil {
		return mentxu.Stop{}, err
	}
	m.changed(ctx)
	m.logger.Info("stop created", "stop_id", created.ID, "order", created.Order)
	return created, nil
}

// UpdateStop applies a partial update to a stop.
func (m *Manager) UpdateStop(ctx context.Context, id int64, patch mentxu.StopPatch) (mentxu.Stop, error) {
	var s mentxu.Stop
	err := m.inTx(ctx, func(tx Tx) error {
		var err error
		if s, err = tx.GetStop(ctx, id); err != nil {
			return fmt.Errorf("getting stop %d: %w", id, err)
		}
		reordered := patch.Order != nil && *patch.Order != s.Order
		patch.Apply(&s)
		if s.ShortName == "" {
			s.ShortName = s.Name
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if err := tx.SaveStop(ctx, s); err != nil {
			return fmt.Errorf("saving stop %d: %w", id, err)
		}
		if !reordered {
			return nil
		}
		users, err := tx.UserIDs(ctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		return m.reconcile(ctx, tx, users)
	})
	if err != nil {
		return mentxu.Stop{}, err
	}
	m.changed(ctx)
	return s, nil
}

// RemoveStop deletes a stop and its progress rows. Users whose active stop
// was removed continue at their next unfinished stop.
func (m *Manager) RemoveStop(ctx context.Context, id int64) error {
	err := m.inTx(ctx, func(tx Tx) error {
		if err := tx.DeleteStop(ctx, id); err != nil {
			return fmt.Errorf("deleting stop %d: %w", id, err)
		}
		users, err := tx.UserIDs(ctx)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		return m.reconcile(ctx, tx, users)
	})
	if err != nil {
		return err
	}
	m.changed(ctx)
	m.logger.Info("stop deleted", "stop_id", id)
	return nil
}

// reconcile activates, for every user without an active row, the first
// stop they have not completed.
func (m *Manager) reconcile(ctx context.Context, tx Tx, users []int64) error {
	now := m.now()
	for _, uid := range users {
		rows, err := tx.ListProgress(ctx, uid)
		if err != nil {
			return fmt.Errorf("listing progress for user %d: %w", uid, err)
		}

		var next *mentxu.StopProgress
		for i := range rows {
			if rows[i].Status == mentxu.StatusActive {
				next = nil
				break
			}
			if rows[i].Status == mentxu.StatusLocked && next == nil {
				next = &rows[i]
			}
		}
		if next == nil {
			continue
		}
		ok, err := tx.ActivateProgress(ctx, next.ID, now)
		if err != nil {
			return fmt.Errorf("activating progress %d: %w", next.ID, err)
		}
		if !ok {
			return fmt.Errorf("progress %d: %w", next.ID, mentxu.ErrConflict)
		}
		m.logger.Info("stop activated", "user_id", uid, "stop_id", next.StopID)
	}
	return nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mentxuapp/backend/internal/mentxu"
)

type Registration struct {
	FirstName string
	LastName  string
	DeviceID  string
}

type Registered struct {
	User     mentxu.User
	Progress []mentxu.StopProgress
	// Existing is set when the device was already registered and the
	// stored user was returned.
	Existing bool
}

// Register creates a user and its full ledger in one transaction.
//
// A non-empty device id identifies one user: registering the same device
// again returns the stored user, initialising its ledger only if it is
// empty. Without a device id a new user is always created.
func (m *Manager) Register(ctx context.Context, req Registration) (Registered, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.FirstName == "" || req.LastName == "" {
		return Registered{}, mentxu.Invalid("firstName and lastName are required")
	}

	var (
		out         Registered
		initialised bool
	)
	err := m.inTx(ctx, func(tx Tx) error {
		out = Registered{}
		initialised = false
		now := m.now()

		if req.DeviceID != "" {
			u, err := tx.UserByDevice(ctx, req.DeviceID)
			switch {
			case err == nil:
				out.User = u
				out.Existing = true
			case !errors.Is(err, mentxu.ErrNotFound):
				return fmt.Errorf("looking up device: %w", err)
			}
		}

		if !out.Existing {
			u := mentxu.User{
				FirstName:    req.FirstName,
				LastName:     req.LastName,
				RegisteredAt: now,
			}
			if req.DeviceID != "" {
				u.DeviceID = &req.DeviceID
			}
			if err := tx.CreateUser(ctx, &u); err != nil {
				if errors.Is(err, mentxu.ErrDuplicate) {
					// Another registration for this device committed first.
					return fmt.Errorf("%w: device registered concurrently", mentxu.ErrConflict)
				}
				return fmt.Errorf("creating user: %w", err)
			}
			out.User = u
		}

		rows, err := tx.ListProgress(ctx, out.User.ID)
		if err != nil {
			return fmt.Errorf("listing progress: %w", err)
		}
		if len(rows) == 0 {
			if err := initLedger(ctx, tx, out.User.ID, now); err != nil {
				return err
			}
			initialised = true
			if rows, err = tx.ListProgress(ctx, out.User.ID); err != nil {
				return fmt.Errorf("listing progress: %w", err)
			}
		}
		out.Progress = rows
		return nil
	})
	if err != nil {
		return Registered{}, err
	}

	if !out.Existing || initialised {
		m.changed(ctx)
	}
	m.logger.Info("user registered",
		"user_id", out.User.ID,
		"existing", out.Existing,
		"stops", len(out.Progress),
	)
	return out, nil
}

// initLedger creates one progress row per stop. The stop with the lowest
// order starts active; every other row starts locked.
func initLedger(ctx context.Context, tx Tx, userID int64, now time.Time) error {
	stops, err := tx.ListStops(ctx)
	if err != nil {
		return fmt.Errorf("listing stops: %w", err)
	}
	for i, s := range stops {
		p := mentxu.Progress{
			UserID: userID,
			StopID: s.ID,
			Status: mentxu.StatusLocked,
		}
		if i == 0 {
			at := now
			p.Status = mentxu.StatusActive
			p.ActivatedAt = &at
		}
		if err := tx.InsertProgress(ctx, &p); err != nil {
			return fmt.Errorf("creating progress for stop %d: %w", s.ID, err)
		}
	}
	return nil
}

// UserLedger returns the user and its progress joined with stops, ordered
// by stop order.
func (m *Manager) UserLedger(ctx context.Context, userID int64) (mentxu.User, []mentxu.StopProgress, error) {
	var (
		user mentxu.User
		rows []mentxu.StopProgress
	)
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		if user, err = tx.GetUser(ctx, userID); err != nil {
			return err
		}
		rows, err = tx.ListProgress(ctx, userID)
		return err
	})
	return user, rows, err
}

// RemoveUser deletes a user together with its ledger.
func (m *Manager) RemoveUser(ctx context.Context, userID int64) error {
	err := m.inTx(ctx, func(tx Tx) error {
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}
	m.changed(ctx)
	return nil
}

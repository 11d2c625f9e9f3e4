package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mentxuapp/backend/internal/mentxu"
)

const progressColumns = `p.id, p.user_id, p.stop_id, p.status, p.activated_at, p.completed_at,
	p.score, p.elapsed_seconds, p.attempts`

func scanProgress(row scanner, extra ...any) (mentxu.Progress, error) {
	var (
		p                    mentxu.Progress
		activated, completed sql.NullString
		elapsed              sql.NullInt64
	)
	dest := append([]any{&p.ID, &p.UserID, &p.StopID, &p.Status, &activated, &completed,
		&p.Score, &elapsed, &p.Attempts}, extra...)
	if err := row.Scan(dest...); err != nil {
		return mentxu.Progress{}, err
	}
	var err error
	if p.ActivatedAt, err = parseNullTime(activated); err != nil {
		return mentxu.Progress{}, err
	}
	if p.CompletedAt, err = parseNullTime(completed); err != nil {
		return mentxu.Progress{}, err
	}
	if elapsed.Valid {
		v := int(elapsed.Int64)
		p.ElapsedSeconds = &v
	}
	return p, nil
}

func (s *SQLite) ListProgress(ctx context.Context, userID int64) ([]mentxu.StopProgress, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+progressColumns+`,
			s.id, s.name, s.short_name, s.latitude, s.longitude, s.description, s.game_type, s.seq, s.image_url
		FROM progress p
		JOIN stops s ON s.id = p.stop_id
		WHERE p.user_id = ?
		ORDER BY s.seq
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []mentxu.StopProgress{}
	for rows.Next() {
		var (
			sp    mentxu.StopProgress
			image sql.NullString
		)
		st := &sp.Stop
		p, err := scanProgress(rows, &st.ID, &st.Name, &st.ShortName, &st.Latitude, &st.Longitude,
			&st.Description, &st.GameType, &st.Order, &image)
		if err != nil {
			return nil, err
		}
		sp.Progress = p
		st.ImageURL = stringPtr(image)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *SQLite) GetProgress(ctx context.Context, id int64) (mentxu.Progress, error) {
	p, err := scanProgress(s.q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress p WHERE p.id = ?`, id))
	if err != nil {
		return mentxu.Progress{}, mapErr(fmt.Errorf("progress %d: %w", id, err))
	}
	return p, nil
}

func (s *SQLite) ProgressFor(ctx context.Context, userID, stopID int64) (mentxu.Progress, error) {
	p, err := scanProgress(s.q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress p WHERE p.user_id = ? AND p.stop_id = ?`,
		userID, stopID))
	if err != nil {
		return mentxu.Progress{}, mapErr(fmt.Errorf("progress for user %d stop %d: %w", userID, stopID, err))
	}
	return p, nil
}

func (s *SQLite) InsertProgress(ctx context.Context, p *mentxu.Progress) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO progress (user_id, stop_id, status, activated_at, completed_at, score, elapsed_seconds, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, p.UserID, p.StopID, string(p.Status), formatTimePtr(p.ActivatedAt), formatTimePtr(p.CompletedAt),
		p.Score, nullInt(p.ElapsedSeconds), p.Attempts).Scan(&p.ID)
	return mapErr(err)
}

// CompleteProgress writes the completed row only while it is still active.
func (s *SQLite) CompleteProgress(ctx context.Context, p mentxu.Progress) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE progress
		SET status = 'completed', completed_at = ?, score = ?, elapsed_seconds = ?, attempts = ?
		WHERE id = ? AND status = 'active'
	`, formatTimePtr(p.CompletedAt), p.Score, nullInt(p.ElapsedSeconds), p.Attempts, p.ID)
	if err != nil {
		return false, mapErr(err)
	}
	return affected(res)
}

// ActivateProgress unlocks a row only while it is still locked.
func (s *SQLite) ActivateProgress(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE progress
		SET status = 'active', activated_at = ?
		WHERE id = ? AND status = 'locked'
	`, formatTime(at), id)
	if err != nil {
		return false, mapErr(err)
	}
	return affected(res)
}

func (s *SQLite) UpdateMetrics(ctx context.Context, id int64, m mentxu.Metrics) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE progress
		SET score = COALESCE(?, score),
		    elapsed_seconds = COALESCE(?, elapsed_seconds),
		    attempts = COALESCE(?, attempts)
		WHERE id = ?
	`, nullInt(m.Score), nullInt(m.ElapsedSeconds), nullInt(m.Attempts), id)
	if err != nil {
		return mapErr(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("progress %d: %w", id, mentxu.ErrNotFound)
	}
	return nil
}

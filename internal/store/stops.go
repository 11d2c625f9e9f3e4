package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mentxuapp/backend/internal/mentxu"
)

const stopColumns = `id, name, short_name, latitude, longitude, description, game_type, seq, image_url`

type scanner interface {
	Scan(dest ...any) error
}

func scanStop(row scanner) (mentxu.Stop, error) {
	var (
		s     mentxu.Stop
		image sql.NullString
	)
	err := row.Scan(&s.ID, &s.Name, &s.ShortName, &s.Latitude, &s.Longitude,
		&s.Description, &s.GameType, &s.Order, &image)
	if err != nil {
		return mentxu.Stop{}, err
	}
	s.ImageURL = stringPtr(image)
	return s, nil
}

func (s *SQLite) ListStops(ctx context.Context) ([]mentxu.Stop, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+stopColumns+` FROM stops ORDER BY seq`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	stops := []mentxu.Stop{}
	for rows.Next() {
		st, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

func (s *SQLite) GetStop(ctx context.Context, id int64) (mentxu.Stop, error) {
	st, err := scanStop(s.q.QueryRowContext(ctx,
		`SELECT `+stopColumns+` FROM stops WHERE id = ?`, id))
	if err != nil {
		return mentxu.Stop{}, mapErr(fmt.Errorf("stop %d: %w", id, err))
	}
	return st, nil
}

func (s *SQLite) NextStop(ctx context.Context, order int) (mentxu.Stop, error) {
	st, err := scanStop(s.q.QueryRowContext(ctx,
		`SELECT `+stopColumns+` FROM stops WHERE seq > ? ORDER BY seq LIMIT 1`, order))
	if err != nil {
		return mentxu.Stop{}, mapErr(fmt.Errorf("stop after %d: %w", order, err))
	}
	return st, nil
}

func (s *SQLite) CountStops(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM stops`).Scan(&n)
	return n, mapErr(err)
}

func (s *SQLite) CreateStop(ctx context.Context, st *mentxu.Stop) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO stops (name, short_name, latitude, longitude, description, game_type, seq, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, st.Name, st.ShortName, st.Latitude, st.Longitude, st.Description, st.GameType,
		st.Order, nullString(st.ImageURL)).Scan(&st.ID)
	return mapErr(err)
}

func (s *SQLite) SaveStop(ctx context.Context, st mentxu.Stop) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE stops
		SET name = ?, short_name = ?, latitude = ?, longitude = ?,
		    description = ?, game_type = ?, seq = ?, image_url = ?
		WHERE id = ?
	`, st.Name, st.ShortName, st.Latitude, st.Longitude, st.Description, st.GameType,
		st.Order, nullString(st.ImageURL), st.ID)
	if err != nil {
		return mapErr(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stop %d: %w", st.ID, mentxu.ErrNotFound)
	}
	return nil
}

// DeleteStop removes a stop and its progress rows. Progress is deleted
// explicitly so the cascade does not depend on the foreign_keys PRAGMA.
func (s *SQLite) DeleteStop(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM progress WHERE stop_id = ?`, id); err != nil {
		return mapErr(err)
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM stops WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stop %d: %w", id, mentxu.ErrNotFound)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mentxuapp/backend/internal/mentxu"
)

const userColumns = `id, first_name, last_name, registered_at, device_id`

func scanUser(row scanner) (mentxu.User, error) {
	var (
		u            mentxu.User
		registeredAt string
		device       sql.NullString
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &registeredAt, &device); err != nil {
		return mentxu.User{}, err
	}
	t, err := parseTime(registeredAt)
	if err != nil {
		return mentxu.User{}, err
	}
	u.RegisteredAt = t
	u.DeviceID = stringPtr(device)
	return u, nil
}

func (s *SQLite) GetUser(ctx context.Context, id int64) (mentxu.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return mentxu.User{}, mapErr(fmt.Errorf("user %d: %w", id, err))
	}
	return u, nil
}

func (s *SQLite) UserByDevice(ctx context.Context, deviceID string) (mentxu.User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE device_id = ?`, deviceID))
	if err != nil {
		return mentxu.User{}, mapErr(fmt.Errorf("device %q: %w", deviceID, err))
	}
	return u, nil
}

func (s *SQLite) CreateUser(ctx context.Context, u *mentxu.User) error {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, registered_at, device_id)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, u.FirstName, u.LastName, formatTime(u.RegisteredAt), nullString(u.DeviceID)).Scan(&u.ID)
	return mapErr(err)
}

// DeleteUser removes a user and its ledger.
func (s *SQLite) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM progress WHERE user_id = ?`, id); err != nil {
		return mapErr(err)
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %d: %w", id, mentxu.ErrNotFound)
	}
	return nil
}

func (s *SQLite) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUsers returns users newest first.
func (s *SQLite) ListUsers(ctx context.Context, limit, offset int) ([]mentxu.User, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY registered_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	users := []mentxu.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, mapErr(err)
}

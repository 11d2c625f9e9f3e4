package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentxuapp/backend/internal/mentxu"
)

func (s *SQLite) AdminByUsername(ctx context.Context, username string) (mentxu.Admin, error) {
	var a mentxu.Admin
	err := s.q.QueryRowContext(ctx, `
		SELECT id, username, password_hash FROM admins WHERE username = ?
	`, username).Scan(&a.ID, &a.Username, &a.PasswordHash)
	if err != nil {
		return mentxu.Admin{}, mapErr(fmt.Errorf("admin %q: %w", username, err))
	}
	return a, nil
}

// CreateAdmin stores a new admin with a bcrypt hash of password.
func (s *SQLite) CreateAdmin(ctx context.Context, username, password string) (mentxu.Admin, error) {
	if username == "" || password == "" {
		return mentxu.Admin{}, mentxu.Invalid("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return mentxu.Admin{}, fmt.Errorf("hashing password: %w", err)
	}

	a := mentxu.Admin{Username: username, PasswordHash: string(hash)}
	err = s.q.QueryRowContext(ctx, `
		INSERT INTO admins (username, password_hash) VALUES (?, ?) RETURNING id
	`, username, a.PasswordHash).Scan(&a.ID)
	if err != nil {
		return mentxu.Admin{}, mapErr(fmt.Errorf("creating admin %q: %w", username, err))
	}
	return a, nil
}

// EnsureAdmin creates the bootstrap admin when no admin exists yet. It
// reports whether an admin was created.
func (s *SQLite) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return false, mapErr(err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateAdmin(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) CreateAdminSession(ctx context.Context, adminID int64, ttl time.Duration) (mentxu.AdminSession, error) {
	sess := mentxu.AdminSession{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO admin_sessions (id, admin_id, expires_at) VALUES (?, ?, ?)
	`, sess.ID, adminID, formatTime(sess.ExpiresAt))
	if err != nil {
		return mentxu.AdminSession{}, mapErr(err)
	}
	return sess, nil
}

// AdminFromSession resolves an unexpired session.
func (s *SQLite) AdminFromSession(ctx context.Context, sessionID string) (mentxu.AdminSession, error) {
	var (
		sess      mentxu.AdminSession
		expiresAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT s.id, a.id, a.username, s.expires_at
		FROM admin_sessions s
		JOIN admins a ON a.id = s.admin_id
		WHERE s.id = ? AND s.expires_at > ?
	`, sessionID, formatTime(time.Now())).Scan(&sess.ID, &sess.AdminID, &sess.Username, &expiresAt)
	if err != nil {
		return mentxu.AdminSession{}, mapErr(fmt.Errorf("admin session: %w", err))
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return mentxu.AdminSession{}, err
	}
	return sess, nil
}

func (s *SQLite) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, sessionID)
	return mapErr(err)
}

// PruneSessions deletes sessions that expired before now and returns how
// many were removed.
func (s *SQLite) PruneSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return n, nil
}

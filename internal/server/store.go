package server

import (
	"context"
	"time"

	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/mentxu"
)

// Ledger is the progress ledger as used by the handlers.
type Ledger interface {
	Register(ctx context.Context, req ledger.Registration) (ledger.Registered, error)
	Complete(ctx context.Context, c ledger.Completion) (ledger.CompletionResult, error)
	UpdateMetrics(ctx context.Context, progressID int64, m mentxu.Metrics) (mentxu.Progress, error)
	UserLedger(ctx context.Context, userID int64) (mentxu.User, []mentxu.StopProgress, error)
	StopStats(ctx context.Context, stopID int64) (mentxu.StopStats, error)
	SystemStats(ctx context.Context) (mentxu.SystemStats, error)

	AddStop(ctx context.Context, s mentxu.Stop) (mentxu.Stop, error)
	UpdateStop(ctx context.Context, id int64, patch mentxu.StopPatch) (mentxu.Stop, error)
	RemoveStop(ctx context.Context, id int64) error
	RemoveUser(ctx context.Context, id int64) error
}

// Catalog serves read-only listings outside the ledger transactions.
type Catalog interface {
	ListStops(ctx context.Context) ([]mentxu.Stop, error)
	GetStop(ctx context.Context, id int64) (mentxu.Stop, error)
	ListUsers(ctx context.Context, limit, offset int) ([]mentxu.User, error)
	GetUser(ctx context.Context, id int64) (mentxu.User, error)
	CountUsers(ctx context.Context) (int, error)
	StopCompletionCounts(ctx context.Context) ([]mentxu.StopCount, error)
}

type AdminStore interface {
	AdminByUsername(ctx context.Context, username string) (mentxu.Admin, error)
	CreateAdminSession(ctx context.Context, adminID int64, ttl time.Duration) (mentxu.AdminSession, error)
	AdminFromSession(ctx context.Context, sessionID string) (mentxu.AdminSession, error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
}

var _ Ledger = (*ledger.Manager)(nil)

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mentxuapp/backend/internal/config"
	"github.com/mentxuapp/backend/internal/database"
	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/migrations"
	"github.com/mentxuapp/backend/internal/store"
)

// env bundles an opened, migrated database for one command run.
type env struct {
	db     *sql.DB
	store  *store.SQLite
	ledger *ledger.Manager
}

func (e *env) Close() error { return e.db.Close() }

func openEnv(ctx context.Context, cmd *cobra.Command, dbPath string) (*env, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		dbPath = cfg.DBPath
	}

	db, err := database.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	st := store.New(db)
	return &env{db: db, store: st, ledger: ledger.New(st, logger)}, nil
}

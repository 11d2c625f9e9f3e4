package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mentxuapp/backend/internal/cache"
	"github.com/mentxuapp/backend/internal/config"
	"github.com/mentxuapp/backend/internal/database"
	"github.com/mentxuapp/backend/internal/handler/health"
	"github.com/mentxuapp/backend/internal/jobs"
	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/media"
	"github.com/mentxuapp/backend/internal/migrations"
	"github.com/mentxuapp/backend/internal/seed"
	"github.com/mentxuapp/backend/internal/server"
	"github.com/mentxuapp/backend/internal/store"
)

const (
	sessionPruneInterval = 10 * time.Minute
	limiterPruneInterval = time.Minute
	limiterIdle          = 3 * time.Minute
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	st := store.New(db)
	checks := map[string]health.Checker{
		"sqlite": health.CheckerFunc(st.Ping),
	}

	// --- Redis (optional) ---
	var opts []ledger.Option
	if cfg.RedisURL != "" {
		rc, err := cache.Open(ctx, cfg.RedisURL, cfg.StatsCacheTTL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		opts = append(opts, ledger.WithCache(rc))
		checks["redis"] = rc
		logger.Info("connected to redis", "stats_ttl", cfg.StatsCacheTTL)
	}

	lm := ledger.New(st, logger, opts...)

	// --- Bootstrap ---
	if cfg.SeedStops {
		stops, err := seed.Default()
		if err != nil {
			return fmt.Errorf("loading default stops: %w", err)
		}
		n, err := seed.Apply(ctx, st, lm, stops)
		if err != nil {
			return fmt.Errorf("seeding stops: %w", err)
		}
		if n > 0 {
			logger.Info("seeded stops", "count", n)
		}
	}

	created, err := st.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("ensuring admin: %w", err)
	}
	if created {
		logger.Info("created admin account", "username", cfg.AdminUsername)
	}

	// --- Object storage (optional) ---
	var images media.Uploader
	if cfg.S3.Bucket != "" {
		s3, err := media.NewS3(ctx, media.Config{
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicURL:       cfg.S3.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("configuring object storage: %w", err)
		}
		images = s3
		logger.Info("image uploads enabled", "bucket", cfg.S3.Bucket)
	}

	limiter := server.NewIPRateLimiter(rate.Limit(cfg.RegisterRate), cfg.RegisterBurst)

	// --- Background jobs ---
	sched, err := jobs.New(logger)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	err = sched.Every("prune-admin-sessions", sessionPruneInterval, func(ctx context.Context) error {
		n, err := st.PruneSessions(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned admin sessions", "count", n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scheduling session pruning: %w", err)
	}
	err = sched.Every("prune-rate-limiters", limiterPruneInterval, func(context.Context) error {
		limiter.Prune(limiterIdle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scheduling limiter pruning: %w", err)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Ledger:      lm,
		Catalog:     st,
		Admins:      st,
		Images:      images,
		Limiter:     limiter,
		Health:      checks,
		SPADir:      cfg.SPADir,
		CORSOrigins: cfg.CORSOrigins,
		MapsAPIKey:  cfg.GoogleMapsAPIKey,
		SessionTTL:  cfg.AdminSessionTTL,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	return g.Wait()
}

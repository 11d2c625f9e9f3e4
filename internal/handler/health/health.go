// Package health serves a dependency health endpoint.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 3 * time.Second

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks map[string]Checker
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type Result struct {
	Status string `json:"status"`
}

// Response is the body of the health endpoint. Status is "ok" only when
// every check passed.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		resp = Response{Status: "ok", Checks: make(map[string]Result, len(h.checks))}
	)
	for name, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := Result{Status: "ok"}
			if err := c.Check(ctx); err != nil {
				h.logger.Error("health check failed", "name", name, "error", err)
				res.Status = "error"
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = res
			if res.Status != "ok" {
				resp.Status = "error"
			}
		}()
	}
	wg.Wait()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

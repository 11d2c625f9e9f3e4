package store_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mentxuapp/backend/internal/database"
	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/mentxu"
	"github.com/mentxuapp/backend/internal/migrations"
	"github.com/mentxuapp/backend/internal/store"
)

func newStore(t *testing.T) *store.SQLite {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return store.New(db)
}

func newManager(st *store.SQLite) *ledger.Manager {
	return ledger.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedStops(t *testing.T, st *store.SQLite, n int) []mentxu.Stop {
	t.Helper()
	var out []mentxu.Stop
	err := st.InTx(context.Background(), func(tx ledger.Tx) error {
		for i := 1; i <= n; i++ {
			s := mentxu.Stop{
				Name:      "Stop",
				ShortName: "S",
				Latitude:  43.33,
				Longitude: -3.03,
				GameType:  "puzzle",
				Order:     i,
			}
			if err := tx.CreateStop(context.Background(), &s); err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func intp(v int) *int { return &v }

func TestStopCRUD(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	url := "https://cdn.example.com/puerto.jpg"
	s := mentxu.Stop{Name: "Puerto", ShortName: "Puerto", Latitude: 43.33, Longitude: -3.03, Order: 1, ImageURL: &url}
	require.NoError(t, st.CreateStop(ctx, &s))
	assert.NotZero(t, s.ID)

	got, err := st.GetStop(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	dup := mentxu.Stop{Name: "Dup", ShortName: "Dup", Order: 1}
	assert.ErrorIs(t, st.CreateStop(ctx, &dup), mentxu.ErrDuplicate)

	got.ImageURL = nil
	got.Description = "Muelle"
	require.NoError(t, st.SaveStop(ctx, got))
	again, err := st.GetStop(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, again.ImageURL)
	assert.Equal(t, "Muelle", again.Description)

	require.NoError(t, st.DeleteStop(ctx, s.ID))
	_, err = st.GetStop(ctx, s.ID)
	assert.ErrorIs(t, err, mentxu.ErrNotFound)
	assert.ErrorIs(t, st.DeleteStop(ctx, s.ID), mentxu.ErrNotFound)
	assert.ErrorIs(t, st.SaveStop(ctx, got), mentxu.ErrNotFound)
}

func TestNextStop(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	for _, order := range []int{1, 3, 7} {
		s := mentxu.Stop{Name: "S", ShortName: "S", Order: order}
		require.NoError(t, st.CreateStop(ctx, &s))
	}

	next, err := st.NextStop(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Order)

	next, err = st.NextStop(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, next.Order)

	_, err = st.NextStop(ctx, 7)
	assert.ErrorIs(t, err, mentxu.ErrNotFound)
}

func TestLedgerScenario(t *testing.T) {
	st := newStore(t)
	stops := seedStops(t, st, 6)
	m := newManager(st)
	ctx := context.Background()

	reg, err := m.Register(ctx, ledger.Registration{FirstName: "Ana", LastName: "Lopez"})
	require.NoError(t, err)
	require.Len(t, reg.Progress, 6)
	assert.Equal(t, mentxu.StatusActive, reg.Progress[0].Status)
	assert.Equal(t, stops[0].ID, reg.Progress[0].Stop.ID)
	for _, r := range reg.Progress[1:] {
		assert.Equal(t, mentxu.StatusLocked, r.Status)
	}

	res, err := m.Complete(ctx, ledger.Completion{UserID: reg.User.ID, StopID: stops[0].ID, Metrics: mentxu.Metrics{Score: intp(10)}})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Progress.Score)
	require.NotNil(t, res.NextStopID)
	assert.Equal(t, stops[1].ID, *res.NextStopID)

	row, err := st.ProgressFor(ctx, reg.User.ID, stops[0].ID)
	require.NoError(t, err)
	assert.Equal(t, mentxu.StatusCompleted, row.Status)
	assert.Equal(t, 10, row.Score)
	require.NotNil(t, row.CompletedAt)

	_, err = m.Complete(ctx, ledger.Completion{UserID: reg.User.ID, StopID: stops[5].ID})
	assert.ErrorIs(t, err, mentxu.ErrStopLocked)
	row, err = st.ProgressFor(ctx, reg.User.ID, stops[5].ID)
	require.NoError(t, err)
	assert.Equal(t, mentxu.StatusLocked, row.Status)
}

func TestDeviceRegistrationIsUnique(t *testing.T) {
	st := newStore(t)
	seedStops(t, st, 2)
	m := newManager(st)
	ctx := context.Background()

	a, err := m.Register(ctx, ledger.Registration{FirstName: "Ana", LastName: "Lopez", DeviceID: "dev-1"})
	require.NoError(t, err)
	b, err := m.Register(ctx, ledger.Registration{FirstName: "Ana", LastName: "Lopez", DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, a.User.ID, b.User.ID)
	assert.True(t, b.Existing)

	dev := "dev-1"
	dup := mentxu.User{FirstName: "X", LastName: "Y", RegisteredAt: time.Now(), DeviceID: &dev}
	assert.ErrorIs(t, st.CreateUser(ctx, &dup), mentxu.ErrDuplicate)

	n, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentCompletion(t *testing.T) {
	st := newStore(t)
	stops := seedStops(t, st, 3)
	m := newManager(st)
	ctx := context.Background()
	reg, err := m.Register(ctx, ledger.Registration{FirstName: "Ana", LastName: "Lopez"})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.Complete(ctx, ledger.Completion{UserID: reg.User.ID, StopID: stops[0].ID})
			if !assert.NoError(t, err) {
				return
			}
			if !res.AlreadyCompleted {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, completed)

	sys, err := st.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sys.TotalCompleted)
	assert.Equal(t, 1, sys.TotalActive)
}

func TestStatistics(t *testing.T) {
	st := newStore(t)
	stops := seedStops(t, st, 6)
	m := newManager(st)
	ctx := context.Background()

	sys, err := st.SystemStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, sys.MostPopularStop)
	assert.Zero(t, sys.UsersFinished)

	a, err := m.Register(ctx, ledger.Registration{FirstName: "Ana", LastName: "Lopez"})
	require.NoError(t, err)
	b, err := m.Register(ctx, ledger.Registration{FirstName: "Bea", LastName: "Garcia"})
	require.NoError(t, err)

	for _, s := range stops {
		_, err := m.Complete(ctx, ledger.Completion{UserID: a.User.ID, StopID: s.ID, Metrics: mentxu.Metrics{ElapsedSeconds: intp(30)}})
		require.NoError(t, err)
	}
	_, err = m.Complete(ctx, ledger.Completion{UserID: b.User.ID, StopID: stops[0].ID, Metrics: mentxu.Metrics{ElapsedSeconds: intp(45)}})
	require.NoError(t, err)
	_, err = m.Complete(ctx, ledger.Completion{UserID: b.User.ID, StopID: stops[1].ID})
	require.NoError(t, err)

	sys, err = st.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, mentxu.SystemStats{
		TotalUsers:     2,
		TotalStops:     6,
		TotalCompleted: 8,
		TotalActive:    1,
		MostPopularStop: &mentxu.PopularStop{
			StopID:    stops[0].ID,
			ShortName: "S",
			Completed: 2,
		},
		UsersFinished: 1,
	}, sys)

	first, err := st.StopStats(ctx, stops[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Completed)
	assert.Equal(t, 37, first.AverageTimeSeconds)

	second, err := st.StopStats(ctx, stops[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 30, second.AverageTimeSeconds)

	third, err := st.StopStats(ctx, stops[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Completed)
	assert.Equal(t, 1, third.Active)

	counts, err := st.StopCompletionCounts(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 6)
	assert.Equal(t, 2, counts[0].Completed)
	assert.Equal(t, 1, counts[5].Completed)

	_, err = st.StopStats(ctx, 999)
	assert.ErrorIs(t, err, mentxu.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	st := newStore(t)
	stops := seedStops(t, st, 2)
	m := newManager(st)
	ctx := context.Background()

	reg, err := m.Register(ctx, ledger.Registration{FirstName: "Ana", LastName: "Lopez"})
	require.NoError(t, err)

	require.NoError(t, m.RemoveStop(ctx, stops[0].ID))
	rows, err := st.ListProgress(ctx, reg.User.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, mentxu.StatusActive, rows[0].Status)

	require.NoError(t, m.RemoveUser(ctx, reg.User.ID))
	sys, err := st.SystemStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, sys.TotalActive)
	assert.Zero(t, sys.TotalUsers)
}

func TestListUsersNewestFirst(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"Ana", "Bea", "Carla"} {
		u := mentxu.User{FirstName: name, LastName: "X", RegisteredAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, st.CreateUser(ctx, &u))
	}

	users, err := st.ListUsers(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Carla", users[0].FirstName)
	assert.Equal(t, "Bea", users[1].FirstName)
	assert.Equal(t, base.Add(2*time.Minute), users[0].RegisteredAt)

	users, err = st.ListUsers(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana", users[0].FirstName)
}

func TestAdminSessions(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	created, err := st.EnsureAdmin(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = st.EnsureAdmin(ctx, "other", "secret")
	require.NoError(t, err)
	assert.False(t, created)

	a, err := st.AdminByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("admin123")))

	_, err = st.CreateAdmin(ctx, "admin", "again")
	assert.ErrorIs(t, err, mentxu.ErrDuplicate)

	sess, err := st.CreateAdminSession(ctx, a.ID, time.Hour)
	require.NoError(t, err)
	got, err := st.AdminFromSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)

	expired, err := st.CreateAdminSession(ctx, a.ID, -time.Minute)
	require.NoError(t, err)
	_, err = st.AdminFromSession(ctx, expired.ID)
	assert.ErrorIs(t, err, mentxu.ErrNotFound)

	n, err := st.PruneSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, st.DeleteAdminSession(ctx, sess.ID))
	_, err = st.AdminFromSession(ctx, sess.ID)
	assert.ErrorIs(t, err, mentxu.ErrNotFound)
}

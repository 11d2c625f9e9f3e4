package ledger_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/mentxu"
)

// memStore is an in-memory ledger.Store. Transactions run serially on a
// copy of the state that replaces the committed state only when fn
// succeeds.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// conflicts makes the next n transactions fail with ErrConflict.
	conflicts int
	// failInsertAt makes the n-th InsertProgress of a transaction fail.
	failInsertAt int
}

type memState struct {
	seq      int64
	stops    map[int64]mentxu.Stop
	users    map[int64]mentxu.User
	progress map[int64]mentxu.Progress
}

var _ ledger.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{state: &memState{
		stops:    map[int64]mentxu.Stop{},
		users:    map[int64]mentxu.User{},
		progress: map[int64]mentxu.Progress{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:      s.seq,
		stops:    make(map[int64]mentxu.Stop, len(s.stops)),
		users:    make(map[int64]mentxu.User, len(s.users)),
		progress: make(map[int64]mentxu.Progress, len(s.progress)),
	}
	for k, v := range s.stops {
		c.stops[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.progress {
		c.progress[k] = v
	}
	return c
}

func (m *memStore) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflicts > 0 {
		m.conflicts--
		return mentxu.ErrConflict
	}
	tx := &memTx{state: m.state.clone(), failInsertAt: m.failInsertAt}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// seedStops inserts stops with orders 1..n directly.
func (m *memStore) seedStops(n int) []mentxu.Stop {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mentxu.Stop
	for i := 1; i <= n; i++ {
		m.state.seq++
		s := mentxu.Stop{
			ID:        m.state.seq,
			Name:      "Stop",
			ShortName: "S",
			Order:     i,
		}
		m.state.stops[s.ID] = s
		out = append(out, s)
	}
	return out
}

func (m *memStore) progress(userID, stopID int64) mentxu.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.state.progress {
		if p.UserID == userID && p.StopID == stopID {
			return p
		}
	}
	return mentxu.Progress{}
}

func (m *memStore) setStatus(userID, stopID int64, st mentxu.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.state.progress {
		if p.UserID == userID && p.StopID == stopID {
			p.Status = st
			m.state.progress[id] = p
		}
	}
}

func (m *memStore) counts() (users, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.users), len(m.state.progress)
}

type memTx struct {
	state        *memState
	inserts      int
	failInsertAt int
}

func (t *memTx) nextID() int64 {
	t.state.seq++
	return t.state.seq
}

func (t *memTx) ListStops(context.Context) ([]mentxu.Stop, error) {
	out := make([]mentxu.Stop, 0, len(t.state.stops))
	for _, s := range t.state.stops {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (t *memTx) GetStop(_ context.Context, id int64) (mentxu.Stop, error) {
	s, ok := t.state.stops[id]
	if !ok {
		return mentxu.Stop{}, mentxu.ErrNotFound
	}
	return s, nil
}

func (t *memTx) NextStop(ctx context.Context, order int) (mentxu.Stop, error) {
	stops, _ := t.ListStops(ctx)
	for _, s := range stops {
		if s.Order > order {
			return s, nil
		}
	}
	return mentxu.Stop{}, mentxu.ErrNotFound
}

func (t *memTx) orderTaken(order int, except int64) bool {
	for _, s := range t.state.stops {
		if s.Order == order && s.ID != except {
			return true
		}
	}
	return false
}

func (t *memTx) CreateStop(_ context.Context, s *mentxu.Stop) error {
	if t.orderTaken(s.Order, 0) {
		return mentxu.ErrDuplicate
	}
	s.ID = t.nextID()
	t.state.stops[s.ID] = *s
	return nil
}

func (t *memTx) SaveStop(_ context.Context, s mentxu.Stop) error {
	if _, ok := t.state.stops[s.ID]; !ok {
		return mentxu.ErrNotFound
	}
	if t.orderTaken(s.Order, s.ID) {
		return mentxu.ErrDuplicate
	}
	t.state.stops[s.ID] = s
	return nil
}

func (t *memTx) DeleteStop(_ context.Context, id int64) error {
	if _, ok := t.state.stops[id]; !ok {
		return mentxu.ErrNotFound
	}
	delete(t.state.stops, id)
	for pid, p := range t.state.progress {
		if p.StopID == id {
			delete(t.state.progress, pid)
		}
	}
	return nil
}

func (t *memTx) GetUser(_ context.Context, id int64) (mentxu.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return mentxu.User{}, mentxu.ErrNotFound
	}
	return u, nil
}

func (t *memTx) UserByDevice(_ context.Context, deviceID string) (mentxu.User, error) {
	for _, u := range t.state.users {
		if u.DeviceID != nil && *u.DeviceID == deviceID {
			return u, nil
		}
	}
	return mentxu.User{}, mentxu.ErrNotFound
}

func (t *memTx) CreateUser(ctx context.Context, u *mentxu.User) error {
	if u.DeviceID != nil {
		if _, err := t.UserByDevice(ctx, *u.DeviceID); err == nil {
			return mentxu.ErrDuplicate
		}
	}
	u.ID = t.nextID()
	t.state.users[u.ID] = *u
	return nil
}

func (t *memTx) DeleteUser(_ context.Context, id int64) error {
	if _, ok := t.state.users[id]; !ok {
		return mentxu.ErrNotFound
	}
	delete(t.state.users, id)
	for pid, p := range t.state.progress {
		if p.UserID == id {
			delete(t.state.progress, pid)
		}
	}
	return nil
}

func (t *memTx) UserIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range t.state.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *memTx) ListProgress(_ context.Context, userID int64) ([]mentxu.StopProgress, error) {
	var out []mentxu.StopProgress
	for _, p := range t.state.progress {
		if p.UserID == userID {
			out = append(out, mentxu.StopProgress{Progress: p, Stop: t.state.stops[p.StopID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stop.Order < out[j].Stop.Order })
	return out, nil
}

func (t *memTx) GetProgress(_ context.Context, id int64) (mentxu.Progress, error) {
	p, ok := t.state.progress[id]
	if !ok {
		return mentxu.Progress{}, mentxu.ErrNotFound
	}
	return p, nil
}

func (t *memTx) ProgressFor(_ context.Context, userID, stopID int64) (mentxu.Progress, error) {
	for _, p := range t.state.progress {
		if p.UserID == userID && p.StopID == stopID {
			return p, nil
		}
	}
	return mentxu.Progress{}, mentxu.ErrNotFound
}

func (t *memTx) InsertProgress(ctx context.Context, p *mentxu.Progress) error {
	t.inserts++
	if t.failInsertAt > 0 && t.inserts == t.failInsertAt {
		return errors.New("disk full")
	}
	if _, err := t.ProgressFor(ctx, p.UserID, p.StopID); err == nil {
		return mentxu.ErrDuplicate
	}
	p.ID = t.nextID()
	t.state.progress[p.ID] = *p
	return nil
}

func (t *memTx) CompleteProgress(_ context.Context, p mentxu.Progress) (bool, error) {
	cur, ok := t.state.progress[p.ID]
	if !ok || cur.Status != mentxu.StatusActive {
		return false, nil
	}
	t.state.progress[p.ID] = p
	return true, nil
}

func (t *memTx) ActivateProgress(_ context.Context, id int64, at time.Time) (bool, error) {
	cur, ok := t.state.progress[id]
	if !ok || cur.Status != mentxu.StatusLocked {
		return false, nil
	}
	cur.Status = mentxu.StatusActive
	cur.ActivatedAt = &at
	t.state.progress[id] = cur
	return true, nil
}

func (t *memTx) UpdateMetrics(_ context.Context, id int64, m mentxu.Metrics) error {
	cur, ok := t.state.progress[id]
	if !ok {
		return mentxu.ErrNotFound
	}
	m.Apply(&cur)
	t.state.progress[id] = cur
	return nil
}

func (t *memTx) StopStats(_ context.Context, stopID int64) (mentxu.StopStats, error) {
	s, ok := t.state.stops[stopID]
	if !ok {
		return mentxu.StopStats{}, mentxu.ErrNotFound
	}
	st := mentxu.StopStats{Stop: s}
	var sum, n int
	for _, p := range t.state.progress {
		if p.StopID != stopID {
			continue
		}
		switch p.Status {
		case mentxu.StatusCompleted:
			st.Completed++
			if p.ElapsedSeconds != nil {
				sum += *p.ElapsedSeconds
				n++
			}
		case mentxu.StatusActive:
			st.Active++
		}
	}
	if n > 0 {
		st.AverageTimeSeconds = sum / n
	}
	return st, nil
}

func (t *memTx) SystemStats(ctx context.Context) (mentxu.SystemStats, error) {
	st := mentxu.SystemStats{TotalUsers: len(t.state.users), TotalStops: len(t.state.stops)}
	perStop := map[int64]int{}
	perUser := map[int64]int{}
	for _, p := range t.state.progress {
		switch p.Status {
		case mentxu.StatusCompleted:
			st.TotalCompleted++
			perStop[p.StopID]++
			perUser[p.UserID]++
		case mentxu.StatusActive:
			st.TotalActive++
		}
	}
	stops, _ := t.ListStops(ctx)
	for _, s := range stops {
		n := perStop[s.ID]
		if n > 0 && (st.MostPopularStop == nil || n > st.MostPopularStop.Completed) {
			st.MostPopularStop = &mentxu.PopularStop{StopID: s.ID, ShortName: s.ShortName, Completed: n}
		}
	}
	if st.TotalStops > 0 {
		for _, n := range perUser {
			if n == st.TotalStops {
				st.UsersFinished++
			}
		}
	}
	return st, nil
}

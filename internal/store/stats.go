package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mentxuapp/backend/internal/mentxu"
)

// StopStats counts completed and active rows for a stop and averages the
// elapsed time of completed rows that recorded one.
func (s *SQLite) StopStats(ctx context.Context, stopID int64) (mentxu.StopStats, error) {
	stop, err := s.GetStop(ctx, stopID)
	if err != nil {
		return mentxu.StopStats{}, err
	}

	st := mentxu.StopStats{Stop: stop}
	var avg sql.NullFloat64
	err = s.q.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN status = 'completed' THEN elapsed_seconds END)
		FROM progress
		WHERE stop_id = ?
	`, stopID).Scan(&st.Completed, &st.Active, &avg)
	if err != nil {
		return mentxu.StopStats{}, mapErr(fmt.Errorf("stats for stop %d: %w", stopID, err))
	}
	if avg.Valid {
		st.AverageTimeSeconds = int(avg.Float64)
	}
	return st, nil
}

func (s *SQLite) SystemStats(ctx context.Context) (mentxu.SystemStats, error) {
	var st mentxu.SystemStats
	err := s.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM stops),
			(SELECT COUNT(*) FROM progress WHERE status = 'completed'),
			(SELECT COUNT(*) FROM progress WHERE status = 'active')
	`).Scan(&st.TotalUsers, &st.TotalStops, &st.TotalCompleted, &st.TotalActive)
	if err != nil {
		return mentxu.SystemStats{}, mapErr(fmt.Errorf("system totals: %w", err))
	}

	var pop mentxu.PopularStop
	err = s.q.QueryRowContext(ctx, `
		SELECT s.id, s.short_name, COUNT(*) AS n
		FROM progress p
		JOIN stops s ON s.id = p.stop_id
		WHERE p.status = 'completed'
		GROUP BY s.id
		ORDER BY n DESC, s.seq ASC
		LIMIT 1
	`).Scan(&pop.StopID, &pop.ShortName, &pop.Completed)
	switch {
	case err == nil:
		st.MostPopularStop = &pop
	case !errors.Is(err, sql.ErrNoRows):
		return mentxu.SystemStats{}, mapErr(fmt.Errorf("most popular stop: %w", err))
	}

	if st.TotalStops > 0 {
		err = s.q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM (
				SELECT user_id
				FROM progress
				WHERE status = 'completed'
				GROUP BY user_id
				HAVING COUNT(*) = ?
			)
		`, st.TotalStops).Scan(&st.UsersFinished)
		if err != nil {
			return mentxu.SystemStats{}, mapErr(fmt.Errorf("finished users: %w", err))
		}
	}
	return st, nil
}

// StopCompletionCounts returns the completed count of every stop in
// itinerary order, including stops nobody has completed.
func (s *SQLite) StopCompletionCounts(ctx context.Context) ([]mentxu.StopCount, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT s.id, s.short_name, s.seq,
			COALESCE(SUM(CASE WHEN p.status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM stops s
		LEFT JOIN progress p ON p.stop_id = s.id
		GROUP BY s.id
		ORDER BY s.seq
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	counts := []mentxu.StopCount{}
	for rows.Next() {
		var c mentxu.StopCount
		if err := rows.Scan(&c.StopID, &c.ShortName, &c.Order, &c.Completed); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

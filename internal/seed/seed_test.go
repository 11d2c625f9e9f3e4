package seed_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentxuapp/backend/internal/database"
	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/mentxu"
	"github.com/mentxuapp/backend/internal/migrations"
	"github.com/mentxuapp/backend/internal/seed"
	"github.com/mentxuapp/backend/internal/store"
)

func TestDefault(t *testing.T) {
	stops, err := seed.Default()
	require.NoError(t, err)
	require.Len(t, stops, 6)

	for i, s := range stops {
		assert.Equal(t, i+1, s.Order)
		assert.NotEmpty(t, s.ShortName)
		assert.NotEmpty(t, s.GameType)
	}
	assert.Equal(t, "Ayuntamiento", stops[0].ShortName)
	assert.Equal(t, "puzzle", stops[5].GameType)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"short name defaults to name", "- {order: 1, name: Puerto, latitude: 43.3, longitude: -3.0}", false},
		{"missing name", "- {order: 1, latitude: 43.3, longitude: -3.0}", true},
		{"zero order", "- {order: 0, name: Puerto}", true},
		{"duplicate order", "- {order: 1, name: A}\n- {order: 1, name: B}", true},
		{"bad latitude", "- {order: 1, name: A, latitude: 95}", true},
		{"not a list", "name: Puerto", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stops, err := seed.Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, stops[0].Name, stops[0].ShortName)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- {order: 2, name: Faro, imageUrl: 'https://x/y.jpg'}"), 0o644))

	stops, err := seed.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, stops, 1)
	require.NotNil(t, stops[0].ImageURL)
	assert.Equal(t, "https://x/y.jpg", *stops[0].ImageURL)

	_, err = seed.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.Run(db))

	st := store.New(db)
	m := ledger.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	stops, err := seed.Default()
	require.NoError(t, err)

	n, err := seed.Apply(ctx, st, m, stops)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = seed.Apply(ctx, st, m, []mentxu.Stop{{Name: "Extra", ShortName: "Extra", Order: 7}})
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := st.CountStops(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

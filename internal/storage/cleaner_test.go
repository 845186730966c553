package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/types"
)

func TestCleaner_RunOnce(t *testing.T) {
	ctx := context.Background()
	store, err := NewStorage(ctx, &Config{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	old := time.Now().Add(-48 * time.Hour)
	end := old.Add(time.Minute)
	require.NoError(t, store.UpsertEpisode(ctx, &types.Episode{ID: "old", Service: "api", StartedAt: old, EndedAt: &end, FinalPhase: types.PhaseHealthy}))
	require.NoError(t, store.UpsertEpisode(ctx, &types.Episode{ID: "new", Service: "api", StartedAt: time.Now(), FinalPhase: types.PhaseProbing}))

	cleaner := NewCleaner(store, 24*time.Hour, time.Hour)
	res, err := cleaner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Episodes)

	recorded, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeHistoryCleanup})
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Contains(t, recorded[0].Message, "pruned 1 episodes")

	res, err = cleaner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Episodes)
}

func TestCleaner_ServeStopsOnCancel(t *testing.T) {
	ctx := context.Background()
	store, err := NewStorage(ctx, &Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewCleaner(store, time.Hour, time.Hour).Serve(cctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cleaner did not stop")
	}
}

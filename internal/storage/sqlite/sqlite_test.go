package sqlite

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

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_InMemory(t *testing.T) {
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	eps, err := store.ListEpisodes(context.Background(), types.EpisodeFilter{})
	require.NoError(t, err)
	assert.Empty(t, eps)
}

func TestEpisodeLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	ep := &types.Episode{
		ID:         "ep-1",
		Service:    "api",
		StartedAt:  start,
		Restarts:   1,
		FinalPhase: types.PhaseProbing,
	}
	require.NoError(t, store.UpsertEpisode(ctx, ep))

	open, err := store.ListEpisodes(ctx, types.EpisodeFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].Open())
	assert.WithinDuration(t, start, open[0].StartedAt, time.Microsecond)

	end := time.Now()
	ep.EndedAt = &end
	ep.Restarts = 3
	ep.Escalated = true
	ep.Notified = true
	ep.Outcome = types.OutcomeRecovered
	ep.RootCause = "disk full"
	ep.Actions = []string{"cleared /tmp", "restarted api"}
	ep.FinalPhase = types.PhaseHealthy
	require.NoError(t, store.UpsertEpisode(ctx, ep))

	got, err := store.GetEpisode(ctx, "ep-1")
	require.NoError(t, err)
	assert.False(t, got.Open())
	assert.Equal(t, 3, got.Restarts)
	assert.True(t, got.Escalated)
	assert.True(t, got.Notified)
	assert.Equal(t, types.OutcomeRecovered, got.Outcome)
	assert.Equal(t, "disk full", got.RootCause)
	assert.Equal(t, []string{"cleared /tmp", "restarted api"}, got.Actions)
	assert.Equal(t, types.PhaseHealthy, got.FinalPhase)

	open, err = store.ListEpisodes(ctx, types.EpisodeFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestGetEpisode_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetEpisode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertEpisode_Invalid(t *testing.T) {
	store := newTestStore(t)
	err := store.UpsertEpisode(context.Background(), &types.Episode{ID: "x", Service: "api", StartedAt: time.Now(), FinalPhase: "bogus"})
	assert.Error(t, err)
}

func TestListEpisodes_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, svc := range []string{"api", "worker", "api"} {
		require.NoError(t, store.UpsertEpisode(ctx, &types.Episode{
			ID:         svc + string(rune('a'+i)),
			Service:    svc,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinalPhase: types.PhaseProbing,
		}))
	}

	api, err := store.ListEpisodes(ctx, types.EpisodeFilter{Service: "api"})
	require.NoError(t, err)
	require.Len(t, api, 2)
	assert.Equal(t, "apic", api[0].ID, "most recent first")

	limited, err := store.ListEpisodes(ctx, types.EpisodeFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestEvents_StoreAndFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	restart := events.NewRestartEvent("api", "ep-1", events.RestartData{Attempt: 1, Issued: true, Duration: 2 * time.Second})
	transition := events.NewTransitionEvent("api", "ep-1", events.TransitionData{From: types.PhaseProbing, To: types.PhaseFailed, Reason: "agent failed"})
	other := events.NewTransitionEvent("worker", "ep-2", events.TransitionData{From: types.PhaseHealthy, To: types.PhaseProbing})
	transition.Timestamp = restart.Timestamp.Add(time.Second)
	other.Timestamp = restart.Timestamp.Add(2 * time.Second)

	for _, e := range []*events.Event{restart, transition, other} {
		require.NoError(t, store.StoreEvent(ctx, e))
	}

	tests := []struct {
		name   string
		filter events.EventFilter
		want   []string
	}{
		{"all", events.EventFilter{}, []string{other.ID, transition.ID, restart.ID}},
		{"service", events.EventFilter{Service: "api"}, []string{transition.ID, restart.ID}},
		{"episode", events.EventFilter{EpisodeID: "ep-2"}, []string{other.ID}},
		{"type", events.EventFilter{Type: events.EventTypeRestart}, []string{restart.ID}},
		{"severity", events.EventFilter{Severity: events.SeverityCritical}, []string{transition.ID}},
		{"after", events.EventFilter{AfterTime: restart.Timestamp}, []string{other.ID, transition.ID}},
		{"limit", events.EventFilter{Limit: 1}, []string{other.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetEvents(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeRestart})
	require.NoError(t, err)
	require.Len(t, got, 1)
	data, err := events.DataAs[events.RestartData](got[0])
	require.NoError(t, err)
	assert.Equal(t, 1, data.Attempt)
	assert.Equal(t, 2*time.Second, data.Duration)
}

func TestPruneOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-40 * 24 * time.Hour)
	oldEnd := old.Add(time.Hour)

	require.NoError(t, store.UpsertEpisode(ctx, &types.Episode{ID: "old-closed", Service: "api", StartedAt: old, EndedAt: &oldEnd, FinalPhase: types.PhaseHealthy}))
	require.NoError(t, store.UpsertEpisode(ctx, &types.Episode{ID: "old-open", Service: "api", StartedAt: old, FinalPhase: types.PhaseFailed}))
	require.NoError(t, store.UpsertEpisode(ctx, &types.Episode{ID: "recent", Service: "api", StartedAt: now, FinalPhase: types.PhaseProbing}))

	oldEvent := events.New(events.EventTypeProbeFailed, "api", "old-closed", types.PhaseProbing, events.SeverityWarning, "probe failed")
	oldEvent.Timestamp = old
	require.NoError(t, store.StoreEvent(ctx, oldEvent))
	require.NoError(t, store.StoreEvent(ctx, events.New(events.EventTypeProbeFailed, "api", "recent", types.PhaseProbing, events.SeverityWarning, "probe failed")))

	res, err := store.PruneOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Episodes)
	assert.Equal(t, 1, res.Events)

	eps, err := store.ListEpisodes(ctx, types.EpisodeFilter{})
	require.NoError(t, err)
	assert.Len(t, eps, 2)

	require.NoError(t, store.Vacuum(ctx))
}

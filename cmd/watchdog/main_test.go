package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1re/watchdog/internal/config"
	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/types"
)

func init() {
	color.NoColor = true
}

// stubBackend reports services whose name starts with "down" as unhealthy
type stubBackend struct {
	probes atomic.Int32
}

func (b *stubBackend) Probe(_ context.Context, spec *types.ServiceSpec) types.HealthResult {
	b.probes.Add(1)
	if strings.HasPrefix(spec.Name, "down") {
		return types.Unhealthy("port 8080 not listening")
	}
	return types.Healthy("active")
}

func (b *stubBackend) Restart(context.Context, *types.ServiceSpec) types.RestartResult {
	return types.RestartResult{Issued: true}
}

func (b *stubBackend) Collect(_ context.Context, spec *types.ServiceSpec) *types.Diagnostics {
	return &types.Diagnostics{Service: spec.Name}
}

func testConfig(t *testing.T, services ...string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Agent.Type = config.AgentNone
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.ControlSocket = ""
	for _, name := range services {
		cfg.Services[name] = config.ServiceConfig{
			HealthCheckCommand: "true",
			RestartCommand:     "true",
		}
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPrintCheckTable(t *testing.T) {
	specs := []types.ServiceSpec{
		{Name: "api", Backend: types.BackendSupervisor, Supervisor: types.SupervisorSystemd, Label: "api.service"},
		{Name: "down-worker", Backend: types.BackendCustom},
	}
	be := &stubBackend{}
	results := probeAll(context.Background(), be, specs)
	assert.Equal(t, int32(2), be.probes.Load())

	var buf bytes.Buffer
	ok := printCheckTable(&buf, specs, results)
	assert.False(t, ok)

	out := buf.String()
	assert.Contains(t, out, "SERVICE")
	assert.Contains(t, out, "systemd api.service")
	assert.Contains(t, out, "unhealthy")
	assert.Contains(t, out, "port 8080 not listening")

	buf.Reset()
	assert.True(t, printCheckTable(&buf, specs[:1], results[:1]))
}

func TestFindSpec(t *testing.T) {
	specs := []types.ServiceSpec{{Name: "api"}, {Name: "db"}}
	spec, ok := findSpec(specs, "db")
	require.True(t, ok)
	assert.Equal(t, "db", spec.Name)

	_, ok = findSpec(specs, "cache")
	assert.False(t, ok)
}

func TestNewDaemon(t *testing.T) {
	cfg := testConfig(t, "api", "db")
	d, err := newDaemon(context.Background(), cfg, &stubBackend{})
	require.NoError(t, err)
	defer d.Close()

	require.Len(t, d.controllers, 2)
	assert.Equal(t, "api", d.controllers[0].Name())
	assert.Equal(t, "db", d.controllers[1].Name())
	assert.NotNil(t, d.store)
	assert.Equal(t, "none", d.agentName)
}

func TestNewDaemon_NoServices(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := newDaemon(context.Background(), cfg, &stubBackend{})
	assert.ErrorIs(t, err, config.ErrNoServices)
}

func TestNewDaemon_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t, "api")
	cfg.History.Path = ""
	d, err := newDaemon(context.Background(), cfg, &stubBackend{})
	require.NoError(t, err)
	defer d.Close()
	assert.Nil(t, d.store)
}

func TestDaemon_RunUntilCancelled(t *testing.T) {
	cfg := testConfig(t, "api", "down-db")
	cfg.MaxSimpleRestarts = 5
	cfg.SettleDelay = 0
	be := &stubBackend{}
	d, err := newDaemon(context.Background(), cfg, be)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return be.probes.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	var down types.ServiceRuntimeState
	for _, c := range d.controllers {
		if c.Name() == "down-db" {
			down = c.State()
		}
	}
	assert.NotEqual(t, types.PhaseHealthy, down.Phase)
	assert.NotEmpty(t, down.EpisodeID)
}

func TestBuildNotifier_Telegram(t *testing.T) {
	cfg := testConfig(t, "api")
	n, err := buildNotifier(cfg)
	require.NoError(t, err)
	assert.NotNil(t, n)

	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.ChatID = "42"
	n, err = buildNotifier(cfg)
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestEpisodeResult(t *testing.T) {
	end := time.Now()
	tests := []struct {
		name string
		ep   types.Episode
		want string
	}{
		{
			name: "open",
			ep:   types.Episode{FinalPhase: types.PhaseRestarting},
			want: "open: restarting",
		},
		{
			name: "recovered",
			ep:   types.Episode{FinalPhase: types.PhaseHealthy, EndedAt: &end},
			want: "healthy",
		},
		{
			name: "failed with outcome",
			ep:   types.Episode{FinalPhase: types.PhaseFailed, Outcome: types.OutcomeFailed, EndedAt: &end},
			want: "failed (failed)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, episodeResult(&tt.ep))
		})
	}
}

func TestPrintEpisodes(t *testing.T) {
	end := time.Now()
	episodes := []*types.Episode{
		{
			ID:         "e1",
			Service:    "api",
			StartedAt:  end.Add(-90 * time.Second),
			EndedAt:    &end,
			Restarts:   3,
			Escalated:  true,
			Outcome:    types.OutcomeRecovered,
			RootCause:  "disk full\non /var",
			FinalPhase: types.PhaseHealthy,
		},
	}
	var buf bytes.Buffer
	printEpisodes(&buf, episodes)
	out := buf.String()
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "disk full on /var")
}

func TestFormatEvent(t *testing.T) {
	e := events.New(events.EventTypeRestart, "api", "e1", types.PhaseRestarting, events.SeverityWarning, "restart attempt 1")
	line := formatEvent(e)
	assert.Contains(t, line, "warning")
	assert.Contains(t, line, "api")
	assert.Contains(t, line, "restart_attempted")
	assert.Contains(t, line, "restart attempt 1")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "abcdefg...", truncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "a b", truncateText("a\nb", 10))
}

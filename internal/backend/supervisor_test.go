package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemdStatus(t *testing.T) {
	tests := []struct {
		output string
		want   UnitStatus
	}{
		{"active\n", UnitRunning},
		{"inactive\n", UnitStopped},
		{"failed\n", UnitStopped},
		{"activating\n", UnitStopped},
		{"weird\n", UnitUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			runner := &fakeRunner{fn: func(context.Context, string) (*CommandResult, error) { return exitWith(3, tt.output) }}
			s := &Systemd{Runner: runner}

			status, _, err := s.Status(context.Background(), "api.service")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, []string{"systemctl is-active api.service"}, runner.Calls())
		})
	}
}

func TestSystemdUserAndRestart(t *testing.T) {
	runner := &fakeRunner{fn: func(_ context.Context, line string) (*CommandResult, error) {
		if line == "systemctl --user restart api.service" {
			return exitWith(1, "Unit api.service not found.")
		}
		return exitWith(0, "")
	}}
	s := &Systemd{Runner: runner, User: true}

	err := s.Restart(context.Background(), "api.service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSystemdStatus_RunnerError(t *testing.T) {
	runner := &fakeRunner{fn: func(context.Context, string) (*CommandResult, error) {
		return nil, errors.New("exec: systemctl not found")
	}}
	status, _, err := (&Systemd{Runner: runner}).Status(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, UnitUnknown, status)
}

const launchctlOutput = `PID	Status	Label
123	0	com.example.api
-	78	com.example.worker
-	0	com.apple.something
`

func TestParseLaunchctlList(t *testing.T) {
	job := parseLaunchctlList(launchctlOutput, "com.example.api")
	assert.Equal(t, launchdJob{PID: "123", LastStatus: "0", Found: true}, job)

	job = parseLaunchctlList(launchctlOutput, "com.example.worker")
	assert.Equal(t, "-", job.PID)
	assert.Equal(t, "78", job.LastStatus)

	assert.False(t, parseLaunchctlList(launchctlOutput, "com.example").Found)
}

func TestLaunchd(t *testing.T) {
	runner := &fakeRunner{fn: func(_ context.Context, line string) (*CommandResult, error) {
		if line == "launchctl list" {
			return exitWith(0, launchctlOutput)
		}
		return exitWith(0, "")
	}}
	l := &Launchd{Runner: runner, UID: 501}

	status, detail, err := l.Status(context.Background(), "com.example.api")
	require.NoError(t, err)
	assert.Equal(t, UnitRunning, status)
	assert.Equal(t, "pid 123", detail)

	status, detail, err = l.Status(context.Background(), "com.example.worker")
	require.NoError(t, err)
	assert.Equal(t, UnitStopped, status)
	assert.Contains(t, detail, "last exit status 78")

	status, detail, err = l.Status(context.Background(), "com.example.missing")
	require.NoError(t, err)
	assert.Equal(t, UnitStopped, status)
	assert.Equal(t, "not loaded", detail)

	require.NoError(t, l.Restart(context.Background(), "com.example.api"))
	assert.Contains(t, runner.Calls(), "launchctl kickstart -k gui/501/com.example.api")

	desc, err := l.Describe(context.Background(), "com.example.worker")
	require.NoError(t, err)
	assert.Equal(t, "com.example.worker: pid=- last_exit_status=78", desc)
}

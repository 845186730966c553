package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/config"
	"github.com/f1re/watchdog/internal/types"
)

type scriptedRunner struct {
	name   string
	args   []string
	result *backend.CommandResult
	err    error
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) (*backend.CommandResult, error) {
	r.name, r.args = name, args
	return r.result, r.err
}

func testRequest() *Request {
	return &Request{
		Spec: &types.ServiceSpec{Name: "api", Backend: types.BackendCustom, Port: 8080, RestartCommand: "systemctl restart api"},
		Diagnostics: &types.Diagnostics{
			Service:       "api",
			ProcessStatus: "stopped",
			Port:          8080,
			PortStatus:    types.PortNotListening,
			LogStatus:     types.LogCaptured,
			LogTail:       []string{"panic: out of disk"},
			CapturedAt:    time.Now(),
		},
		EpisodeID: "ep-1",
		Attempts:  3,
	}
}

func TestClaudeCode_ParsesReport(t *testing.T) {
	runner := &scriptedRunner{result: &backend.CommandResult{Output: `Checked the logs, disk was full.
{"outcome": "recovered", "root_cause": "Disk full", "actions": ["Removed old logs", "Restarted api"]}`}}
	agent := NewClaudeCode(ClaudeCodeConfig{Runner: runner})

	rep, err := agent.Invoke(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeRecovered, rep.Outcome)
	assert.Equal(t, "Disk full", rep.RootCause)
	assert.Equal(t, []string{"Removed old logs", "Restarted api"}, rep.Actions)
	assert.Equal(t, "ep-1", rep.EpisodeID)
	assert.Equal(t, 3, rep.Attempts)

	assert.Equal(t, "claude", runner.name)
	require.NotEmpty(t, runner.args)
	assert.Equal(t, []string{"-p", "--allowedTools", "Bash,Read,Edit,Glob"}, runner.args[:3])
	prompt := runner.args[len(runner.args)-1]
	assert.Contains(t, prompt, "The api service has crashed")
	assert.Contains(t, prompt, "3 simple restart attempts")
	assert.Contains(t, prompt, "panic: out of disk")
}

func TestClaudeCode_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		exit    int
		runErr  error
		want    types.Outcome
		wantErr string
	}{
		{name: "failed report", output: `{"outcome":"failed","root_cause":"bad config"}`, want: types.OutcomeFailed},
		{name: "odd outcome maps to unknown", output: `{"outcome":"partially","root_cause":"x"}`, want: types.OutcomeUnknown},
		{name: "no report", output: "I restarted it, should be fine now", want: types.OutcomeUnknown},
		{name: "non-zero exit", output: "auth error", exit: 1, wantErr: "exited with code 1"},
		{name: "timeout", runErr: backend.ErrTimedOut, wantErr: "timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{result: &backend.CommandResult{Output: tt.output, ExitCode: tt.exit}, err: tt.runErr}
			rep, err := NewClaudeCode(ClaudeCodeConfig{Runner: runner}).Invoke(context.Background(), testRequest())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rep.Outcome)
		})
	}
}

func TestClaudeCode_CustomCommand(t *testing.T) {
	runner := &scriptedRunner{result: &backend.CommandResult{Output: `{"outcome":"recovered"}`}}
	agent := NewClaudeCode(ClaudeCodeConfig{Command: "/opt/claude", Args: []string{"--print"}, Runner: runner})
	_, err := agent.Invoke(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "/opt/claude", runner.name)
	assert.Len(t, runner.args, 2)
	assert.Equal(t, "--print", runner.args[0])
}

type fakeCaller struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCaller) CallAI(_ context.Context, prompt, _, _ string, _ int) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestAnalyst(t *testing.T) {
	caller := &fakeCaller{reply: "```json\n{\"outcome\":\"recovered\",\"root_cause\":\"OOM kill\",\"actions\":[\"raise memory limit\"]}\n```"}
	rep, err := NewAnalyst(caller, "").Invoke(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeUnknown, rep.Outcome, "analyst never claims recovery")
	assert.Equal(t, "OOM kill", rep.RootCause)
	assert.Contains(t, caller.prompt, "cannot run commands")

	_, err = NewAnalyst(&fakeCaller{err: errors.New("overloaded")}, "").Invoke(context.Background(), testRequest())
	assert.ErrorContains(t, err, "overloaded")

	_, err = NewAnalyst(&fakeCaller{reply: "no idea"}, "").Invoke(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	_, err := Noop{}.Invoke(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoAgent)
}

func TestNew(t *testing.T) {
	a, err := New(config.AgentConfig{Type: config.AgentNone})
	require.NoError(t, err)
	assert.Equal(t, "none", a.Name())

	a, err = New(config.AgentConfig{Type: config.AgentClaudeCode, Command: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "claude-code", a.Name())

	_, err = New(config.AgentConfig{Type: "gpt"})
	assert.Error(t, err)
}

func TestRemediationPrompt_EndsWithReportInstructions(t *testing.T) {
	p := remediationPrompt(testRequest())
	assert.True(t, strings.HasSuffix(p, reportInstructions))
	assert.Contains(t, p, "Restart command: systemctl restart api")
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/f1re/watchdog/internal/ai"
	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/logging"
	"github.com/f1re/watchdog/internal/types"
)

// ClaudeCodeConfig configures the Claude Code subprocess agent
type ClaudeCodeConfig struct {
	// Command is the CLI binary (default "claude")
	Command string
	// Args precede the prompt (default -p --allowedTools Bash,Read,Edit,Glob)
	Args   []string
	Runner backend.Runner
}

// ClaudeCode runs the Claude Code CLI non-interactively with the remediation
// prompt and parses the JSON report it ends with
type ClaudeCode struct {
	command string
	args    []string
	runner  backend.Runner
}

// NewClaudeCode creates a Claude Code agent
func NewClaudeCode(cfg ClaudeCodeConfig) *ClaudeCode {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{"-p", "--allowedTools", "Bash,Read,Edit,Glob"}
	}
	if cfg.Runner == nil {
		cfg.Runner = &backend.ExecRunner{KeepTail: true}
	}
	return &ClaudeCode{command: cfg.Command, args: cfg.Args, runner: cfg.Runner}
}

// Name implements Agent
func (c *ClaudeCode) Name() string {
	return "claude-code"
}

// Invoke implements Agent. A non-zero exit or a run error is returned as an
// error; output without a parseable report yields outcome unknown.
func (c *ClaudeCode) Invoke(ctx context.Context, req *Request) (*types.RecoveryReport, error) {
	log := logging.ForService(req.Spec.Name)
	start := time.Now()

	args := append(append([]string{}, c.args...), remediationPrompt(req))
	log.Info().Str("command", c.command).Msg("Invoking Claude Code agent")

	res, err := c.runner.Run(ctx, c.command, args...)
	if err != nil {
		return nil, fmt.Errorf("claude code agent: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("claude code agent exited with code %d: %s", res.ExitCode, lastLine(res.Output))
	}

	parsed := ai.Parse[report](res.Output, "claude code report")
	if !parsed.Success {
		log.Warn().Str("error", parsed.Error).Msg("Agent output had no parseable report")
		return &types.RecoveryReport{
			Service:   req.Spec.Name,
			EpisodeID: req.EpisodeID,
			Outcome:   types.OutcomeUnknown,
			RootCause: lastLine(res.Output),
			Attempts:  req.Attempts,
			Duration:  time.Since(start),
		}, nil
	}

	rep := parsed.Data.toRecoveryReport(req)
	rep.Duration = time.Since(start)
	log.Info().
		Str("outcome", string(rep.Outcome)).
		Int("actions", len(rep.Actions)).
		Dur("duration", rep.Duration).
		Msg("Agent completed")
	return rep, nil
}

// lastLine returns the last non-empty line of s, shortened for messages
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) > 300 {
		last = last[:300] + "..."
	}
	return last
}

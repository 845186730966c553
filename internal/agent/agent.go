// Package agent adapts autonomous remediation agents to the watchdog. An
// agent receives the diagnostics gathered after simple restarts were
// exhausted and reports what it found and did.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/f1re/watchdog/internal/ai"
	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/config"
	"github.com/f1re/watchdog/internal/types"
)

// ErrNoAgent is reported when escalation is disabled
var ErrNoAgent = errors.New("no agent configured")

// Request is everything an agent is given for one escalation
type Request struct {
	Spec        *types.ServiceSpec
	Diagnostics *types.Diagnostics
	EpisodeID   string
	// Attempts is the number of simple restarts already issued
	Attempts int
}

// Agent performs remediation for one escalation. Implementations are shared
// by every service loop and must be safe for concurrent use. Invoke should
// honour ctx; the caller also bounds it with the agent timeout.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, req *Request) (*types.RecoveryReport, error)
}

// report is the JSON object agents are asked to finish with
type report struct {
	Outcome   string   `json:"outcome"`
	RootCause string   `json:"root_cause"`
	Actions   []string `json:"actions"`
}

// toRecoveryReport converts parsed agent output, mapping anything that is not
// a known outcome to unknown so the confirmation probe decides
func (r report) toRecoveryReport(req *Request) *types.RecoveryReport {
	outcome := types.Outcome(strings.ToLower(strings.TrimSpace(r.Outcome)))
	if !outcome.IsValid() {
		outcome = types.OutcomeUnknown
	}
	return &types.RecoveryReport{
		Service:   req.Spec.Name,
		EpisodeID: req.EpisodeID,
		Outcome:   outcome,
		RootCause: strings.TrimSpace(r.RootCause),
		Actions:   r.Actions,
		Attempts:  req.Attempts,
	}
}

// New builds the agent selected by cfg.Type
func New(cfg config.AgentConfig) (Agent, error) {
	switch cfg.Type {
	case "", config.AgentClaudeCode:
		dir := cfg.WorkingDir
		if dir == "" {
			if home, err := os.UserHomeDir(); err == nil {
				dir = home
			}
		}
		return NewClaudeCode(ClaudeCodeConfig{
			Command: cfg.Command,
			Args:    cfg.Args,
			Runner:  &backend.ExecRunner{Dir: dir, MaxOutput: cfg.MaxOutputBytes, KeepTail: true},
		}), nil
	case config.AgentAnalyst:
		client, err := ai.NewClient(ai.Config{Model: cfg.Model})
		if err != nil {
			return nil, fmt.Errorf("failed to create AI client: %w", err)
		}
		return NewAnalyst(client, cfg.Model), nil
	case config.AgentNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown agent type %q", cfg.Type)
	}
}

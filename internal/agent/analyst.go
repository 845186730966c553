package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/f1re/watchdog/internal/ai"
	"github.com/f1re/watchdog/internal/types"
)

// Caller is the subset of ai.Client the analyst uses
type Caller interface {
	CallAI(ctx context.Context, prompt, operation, model string, maxTokens int) (string, error)
}

// Analyst asks the Anthropic API for a root-cause analysis. It cannot change
// anything on the host, so its outcome is always unknown and the watchdog's
// confirmation probe decides whether the service came back.
type Analyst struct {
	client Caller
	model  string
}

// NewAnalyst creates an analysis-only agent
func NewAnalyst(client Caller, model string) *Analyst {
	return &Analyst{client: client, model: model}
}

// Name implements Agent
func (a *Analyst) Name() string {
	return "analyst"
}

// Invoke implements Agent
func (a *Analyst) Invoke(ctx context.Context, req *Request) (*types.RecoveryReport, error) {
	start := time.Now()
	text, err := a.client.CallAI(ctx, analysisPrompt(req), "root-cause-analysis", a.model, 2048)
	if err != nil {
		return nil, fmt.Errorf("analyst agent: %w", err)
	}

	parsed := ai.Parse[report](text, "root cause analysis")
	if !parsed.Success {
		return nil, fmt.Errorf("analyst agent: %s", parsed.Error)
	}

	rep := parsed.Data.toRecoveryReport(req)
	rep.Outcome = types.OutcomeUnknown
	rep.Duration = time.Since(start)
	return rep, nil
}

package agent

import (
	"context"

	"github.com/f1re/watchdog/internal/types"
)

// Noop is used when escalation is disabled; every escalation fails
type Noop struct{}

// Name implements Agent
func (Noop) Name() string {
	return "none"
}

// Invoke implements Agent
func (Noop) Invoke(_ context.Context, req *Request) (*types.RecoveryReport, error) {
	return nil, ErrNoAgent
}

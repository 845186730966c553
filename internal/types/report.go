package types

import (
	"fmt"
	"time"
)

// Outcome is the result of an escalation as reported by the agent adapter
type Outcome string

const (
	OutcomeRecovered Outcome = "recovered"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnknown   Outcome = "unknown"
)

// IsValid checks if the outcome value is valid
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeRecovered, OutcomeFailed, OutcomeUnknown:
		return true
	}
	return false
}

// RecoveryReport is the immutable record of one escalation, consumed by notifiers
type RecoveryReport struct {
	Service   string  `json:"service"`
	EpisodeID string  `json:"episode_id"`
	Outcome   Outcome `json:"outcome"`
	// AgentOutcome keeps the agent's own claim when the confirmation probe overrode it
	AgentOutcome Outcome       `json:"agent_outcome,omitempty"`
	RootCause    string        `json:"root_cause,omitempty"`
	Actions      []string      `json:"actions,omitempty"`
	Duration     time.Duration `json:"duration"`
	// Attempts is the number of simple restarts issued before escalation
	Attempts int `json:"attempts"`
	// Error holds the adapter error or timeout text when the agent itself failed
	Error string `json:"error,omitempty"`
	// Confirmed is set when a confirmation probe passed after the agent finished
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// Succeeded reports whether the service was confirmed healthy after escalation
func (r *RecoveryReport) Succeeded() bool {
	return r.Confirmed
}

// Title is a one-line headline for the report
func (r *RecoveryReport) Title() string {
	if r.Succeeded() {
		return fmt.Sprintf("Service %s recovered", r.Service)
	}
	return fmt.Sprintf("Service %s could not be recovered", r.Service)
}

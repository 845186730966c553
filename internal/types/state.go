package types

import (
	"fmt"
	"time"
)

// Phase is the escalation state of a single service
type Phase string

const (
	PhaseHealthy    Phase = "healthy"
	PhaseProbing    Phase = "probing"
	PhaseRestarting Phase = "restarting"
	PhaseEscalating Phase = "escalating"
	PhaseRecovering Phase = "recovering"
	PhaseFailed     Phase = "failed"
)

// IsValid checks if the phase value is valid
func (p Phase) IsValid() bool {
	switch p {
	case PhaseHealthy, PhaseProbing, PhaseRestarting, PhaseEscalating, PhaseRecovering, PhaseFailed:
		return true
	}
	return false
}

// Ordinal gives each phase a stable number for gauges
func (p Phase) Ordinal() float64 {
	switch p {
	case PhaseHealthy:
		return 0
	case PhaseProbing:
		return 1
	case PhaseRestarting:
		return 2
	case PhaseEscalating:
		return 3
	case PhaseRecovering:
		return 4
	case PhaseFailed:
		return 5
	}
	return -1
}

// ServiceRuntimeState is the mutable per-service state owned by one control loop
type ServiceRuntimeState struct {
	Phase        Phase     `json:"phase"`
	FailureCount int       `json:"failure_count"`
	LastCheck    time.Time `json:"last_check"`
	LastHealthy  time.Time `json:"last_healthy"`
	// EpisodeID is empty while the service is healthy
	EpisodeID string `json:"episode_id,omitempty"`
	// Escalated is set once the agent has been invoked for EpisodeID
	Escalated bool `json:"escalated"`
	// Notified is set once a report has been sent for EpisodeID
	Notified    bool      `json:"notified"`
	EpisodeFrom time.Time `json:"episode_from,omitempty"`
	FailedAt    time.Time `json:"failed_at,omitempty"`
}

// String renders the phase with its counter, e.g. "probing(2)"
func (s ServiceRuntimeState) String() string {
	switch s.Phase {
	case PhaseProbing, PhaseRestarting:
		return fmt.Sprintf("%s(%d)", s.Phase, s.FailureCount)
	}
	return string(s.Phase)
}

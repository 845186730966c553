// Package events defines the structured events the watchdog records while
// driving each service through its escalation phases.
package events

import (
	"time"

	"github.com/f1re/watchdog/internal/types"
)

// EventType represents the kind of event
type EventType string

const (
	// EventTypeProbeFailed indicates a health probe failed
	EventTypeProbeFailed EventType = "probe_failed"
	// EventTypeTransition indicates a service changed phase
	EventTypeTransition EventType = "phase_transition"
	// EventTypeRestart indicates a simple restart was attempted
	EventTypeRestart EventType = "restart_attempted"
	// EventTypeEscalationStarted indicates diagnostics are being handed to the agent
	EventTypeEscalationStarted EventType = "escalation_started"
	// EventTypeEscalationCompleted indicates the agent returned (or timed out)
	EventTypeEscalationCompleted EventType = "escalation_completed"
	// EventTypeNotification indicates a report was delivered or failed to deliver
	EventTypeNotification EventType = "notification"
	// EventTypeEpisodeClosed indicates a failure episode ended
	EventTypeEpisodeClosed EventType = "episode_closed"
	// EventTypeTickAbandoned indicates an in-flight tick was abandoned at shutdown
	EventTypeTickAbandoned EventType = "tick_abandoned"
	// EventTypeHistoryCleanup indicates old history rows were pruned
	EventTypeHistoryCleanup EventType = "history_cleanup"
)

// EventSeverity represents the severity level of an event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// Event is one recorded occurrence in a service's monitoring history
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Service   string        `json:"service"`
	EpisodeID string        `json:"episode_id,omitempty"`
	Phase     types.Phase   `json:"phase,omitempty"`
	Severity  EventSeverity `json:"severity"`
	Message   string        `json:"message"`
	// Data holds type-specific fields; use SetData / DataAs for typed access
	Data map[string]interface{} `json:"data,omitempty"`
}

// TransitionData describes a phase change
type TransitionData struct {
	From         types.Phase `json:"from"`
	To           types.Phase `json:"to"`
	FailureCount int         `json:"failure_count"`
	Reason       string      `json:"reason"`
}

// RestartData describes a restart attempt
type RestartData struct {
	Attempt    int           `json:"attempt"`
	Issued     bool          `json:"issued"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Recovered  bool          `json:"recovered"`
	ProbeAfter string        `json:"probe_after"`
}

// EscalationData describes an agent invocation
type EscalationData struct {
	Agent     string        `json:"agent"`
	Outcome   types.Outcome `json:"outcome,omitempty"`
	RootCause string        `json:"root_cause,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Confirmed bool          `json:"confirmed"`
}

// NotificationData describes a notification attempt
type NotificationData struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// EventFilter defines criteria for listing events
type EventFilter struct {
	Service   string
	EpisodeID string
	Type      EventType
	Severity  EventSeverity
	AfterTime time.Time
	Limit     int
}

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/f1re/watchdog/internal/types"
)

// New creates an event with a fresh ID and the current time
func New(eventType EventType, service, episodeID string, phase types.Phase, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Service:   service,
		EpisodeID: episodeID,
		Phase:     phase,
		Severity:  severity,
		Message:   message,
	}
}

// NewTransitionEvent records a phase change
func NewTransitionEvent(service, episodeID string, data TransitionData) *Event {
	severity := SeverityInfo
	switch data.To {
	case types.PhaseEscalating:
		severity = SeverityWarning
	case types.PhaseFailed:
		severity = SeverityCritical
	}
	e := New(EventTypeTransition, service, episodeID, data.To, severity,
		fmt.Sprintf("%s -> %s: %s", data.From, data.To, data.Reason))
	_ = SetData(e, data)
	return e
}

// NewRestartEvent records a restart attempt
func NewRestartEvent(service, episodeID string, data RestartData) *Event {
	severity := SeverityWarning
	msg := fmt.Sprintf("restart attempt %d issued", data.Attempt)
	if !data.Issued {
		severity = SeverityError
		msg = fmt.Sprintf("restart attempt %d failed: %s", data.Attempt, data.Error)
	}
	e := New(EventTypeRestart, service, episodeID, types.PhaseRestarting, severity, msg)
	_ = SetData(e, data)
	return e
}

// NewEscalationEvent records the end of an agent invocation
func NewEscalationEvent(service, episodeID string, data EscalationData) *Event {
	severity := SeverityInfo
	if data.Outcome == types.OutcomeFailed || data.Error != "" {
		severity = SeverityError
	}
	msg := fmt.Sprintf("agent %s returned %s", data.Agent, data.Outcome)
	if data.Error != "" {
		msg = fmt.Sprintf("agent %s failed: %s", data.Agent, data.Error)
	}
	e := New(EventTypeEscalationCompleted, service, episodeID, types.PhaseEscalating, severity, msg)
	_ = SetData(e, data)
	return e
}

// NewNotificationEvent records a notification attempt
func NewNotificationEvent(service, episodeID string, phase types.Phase, err error) *Event {
	data := NotificationData{Delivered: err == nil}
	severity, msg := SeverityInfo, "report delivered"
	if err != nil {
		data.Error = err.Error()
		severity, msg = SeverityWarning, "report delivery failed: "+err.Error()
	}
	e := New(EventTypeNotification, service, episodeID, phase, severity, msg)
	_ = SetData(e, data)
	return e
}

// SetData stores data in e.Data as a JSON-shaped map
func SetData[T any](e *Event, data T) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to convert event data: %w", err)
	}
	e.Data = m
	return nil
}

// DataAs decodes e.Data into T
func DataAs[T any](e *Event) (*T, error) {
	var data T
	if e.Data == nil {
		return &data, nil
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse event data: %w", err)
	}
	return &data, nil
}

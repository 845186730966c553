package types

import (
	"fmt"
	"time"
)

// Episode is one contiguous stretch of unhealthiness for a service, from the
// first failed probe until the service is healthy again (or the failed
// cooldown expires)
type Episode struct {
	ID         string     `json:"id"`
	Service    string     `json:"service"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Restarts   int        `json:"restarts"`
	Escalated  bool       `json:"escalated"`
	Outcome    Outcome    `json:"outcome,omitempty"`
	RootCause  string     `json:"root_cause,omitempty"`
	Actions    []string   `json:"actions,omitempty"`
	FinalPhase Phase      `json:"final_phase"`
	Notified   bool       `json:"notified"`
}

// Open reports whether the episode has not ended yet
func (e *Episode) Open() bool {
	return e.EndedAt == nil
}

// Duration is the elapsed time of the episode, up to now if still open
func (e *Episode) Duration() time.Duration {
	if e.EndedAt != nil {
		return e.EndedAt.Sub(e.StartedAt)
	}
	return time.Since(e.StartedAt)
}

// Validate checks required fields before the episode is persisted
func (e *Episode) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("episode id is required")
	}
	if e.Service == "" {
		return fmt.Errorf("episode service is required")
	}
	if e.StartedAt.IsZero() {
		return fmt.Errorf("episode start time is required")
	}
	if !e.FinalPhase.IsValid() {
		return fmt.Errorf("invalid episode phase: %q", e.FinalPhase)
	}
	if e.Outcome != "" && !e.Outcome.IsValid() {
		return fmt.Errorf("invalid episode outcome: %q", e.Outcome)
	}
	return nil
}

// EpisodeFilter narrows episode listings
type EpisodeFilter struct {
	Service  string
	OpenOnly bool
	Limit    int
}

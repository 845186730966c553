package types

import "time"

// HealthResult is the outcome of a single health probe.
// A probe never returns an error; every failure mode maps to Healthy=false with a Detail.
type HealthResult struct {
	Healthy   bool      `json:"healthy"`
	Detail    string    `json:"detail"`
	CheckedAt time.Time `json:"checked_at"`
}

// Healthy builds a passing HealthResult
func Healthy(detail string) HealthResult {
	return HealthResult{Healthy: true, Detail: detail, CheckedAt: time.Now()}
}

// Unhealthy builds a failing HealthResult
func Unhealthy(detail string) HealthResult {
	return HealthResult{Healthy: false, Detail: detail, CheckedAt: time.Now()}
}

// RestartResult records a single restart attempt.
// Issued is false when the restart command could not be run or exited non-zero.
type RestartResult struct {
	Issued   bool          `json:"issued"`
	Detail   string        `json:"detail,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Error returns the error text, or "" if the restart was issued cleanly
func (r RestartResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

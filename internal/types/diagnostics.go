package types

import (
	"fmt"
	"strings"
	"time"
)

// PortStatus is the tri-state port observation in a Diagnostics snapshot
type PortStatus string

const (
	PortListening     PortStatus = "listening"
	PortNotListening  PortStatus = "not_listening"
	PortNotConfigured PortStatus = "not_configured"
)

// Log status values. LogUnavailable is recorded in place of a log tail when no
// log file is configured, the file cannot be read, or reading it timed out.
const (
	LogCaptured    = "captured"
	LogUnavailable = "log unavailable"
)

// Unavailable marks a diagnostics field whose sub-check failed or timed out
const Unavailable = "unavailable"

// CheckOutput is the raw result of running the custom health command during diagnostics
type CheckOutput struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// Diagnostics is an immutable snapshot of a service's state, collected fresh per escalation
type Diagnostics struct {
	Service       string       `json:"service"`
	ProcessStatus string       `json:"process_status"`
	Port          int          `json:"port,omitempty"`
	PortStatus    PortStatus   `json:"port_status"`
	LogFile       string       `json:"log_file,omitempty"`
	LogTail       []string     `json:"log_tail,omitempty"`
	LogStatus     string       `json:"log_status,omitempty"`
	CustomCheck   *CheckOutput `json:"custom_check,omitempty"`
	// Unavailable lists sub-checks that errored or were abandoned, keyed by sub-check name
	Unavailable map[string]string `json:"unavailable,omitempty"`
	CapturedAt  time.Time         `json:"captured_at"`
}

// LogAvailable reports whether a log tail was captured
func (d *Diagnostics) LogAvailable() bool {
	return d.LogStatus == LogCaptured
}

// Summary renders the snapshot as plain text for prompts and notifications
func (d *Diagnostics) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service: %s\n", d.Service)
	fmt.Fprintf(&b, "Captured: %s\n", d.CapturedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Process status: %s\n", d.ProcessStatus)
	if d.PortStatus == PortNotConfigured {
		fmt.Fprintf(&b, "Port: not configured\n")
	} else {
		fmt.Fprintf(&b, "Port %d: %s\n", d.Port, d.PortStatus)
	}
	if d.CustomCheck != nil {
		fmt.Fprintf(&b, "Health check exit code: %d\n", d.CustomCheck.ExitCode)
		if d.CustomCheck.Output != "" {
			fmt.Fprintf(&b, "Health check output:\n%s\n", d.CustomCheck.Output)
		}
	}
	for name, reason := range d.Unavailable {
		fmt.Fprintf(&b, "%s: %s\n", name, reason)
	}
	if d.LogAvailable() {
		fmt.Fprintf(&b, "Last %d log lines (%s):\n%s\n", len(d.LogTail), d.LogFile, strings.Join(d.LogTail, "\n"))
	} else {
		fmt.Fprintf(&b, "Logs: %s\n", d.LogStatus)
	}
	return b.String()
}

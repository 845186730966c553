package types

import (
	"fmt"
	"strings"
)

// BackendKind selects the strategy used to probe, restart, and inspect a service
type BackendKind string

const (
	// BackendSupervisor drives the service through the OS process supervisor (systemd or launchd)
	BackendSupervisor BackendKind = "supervisor"
	// BackendCustom drives the service through operator-supplied shell commands
	BackendCustom BackendKind = "custom"
)

// IsValid checks if the backend kind value is valid
func (k BackendKind) IsValid() bool {
	switch k {
	case BackendSupervisor, BackendCustom:
		return true
	}
	return false
}

// SupervisorKind identifies the process supervisor behind a supervisor-backed service
type SupervisorKind string

const (
	SupervisorSystemd SupervisorKind = "systemd"
	SupervisorLaunchd SupervisorKind = "launchd"
)

// IsValid checks if the supervisor kind value is valid
func (k SupervisorKind) IsValid() bool {
	switch k {
	case SupervisorSystemd, SupervisorLaunchd:
		return true
	}
	return false
}

// ServiceSpec describes one monitored service.
// It is immutable after configuration load and shared read-only by every component.
type ServiceSpec struct {
	Name       string         `json:"name"`
	Backend    BackendKind    `json:"backend"`
	Supervisor SupervisorKind `json:"supervisor,omitempty"`
	// Label is the systemd unit name or launchd job label
	Label              string `json:"label,omitempty"`
	Port               int    `json:"port,omitempty"`
	LogFile            string `json:"log_file,omitempty"`
	HealthCheckCommand string `json:"health_check_command,omitempty"`
	RestartCommand     string `json:"restart_command,omitempty"`
}

// HasPort reports whether a port check is configured
func (s *ServiceSpec) HasPort() bool {
	return s.Port > 0
}

// Validate checks the spec for internal consistency
func (s *ServiceSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("service name is required")
	}
	if !s.Backend.IsValid() {
		return fmt.Errorf("service %s: invalid backend %q", s.Name, s.Backend)
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("service %s: port %d out of range", s.Name, s.Port)
	}
	if s.Backend == BackendSupervisor {
		if s.Label == "" {
			return fmt.Errorf("service %s: supervisor backend requires a label", s.Name)
		}
		if !s.Supervisor.IsValid() {
			return fmt.Errorf("service %s: invalid supervisor %q", s.Name, s.Supervisor)
		}
	}
	return nil
}

// String returns a short human-readable description of how the service is driven
func (s *ServiceSpec) String() string {
	if s.Backend == BackendSupervisor {
		return fmt.Sprintf("%s (%s %s)", s.Name, s.Supervisor, s.Label)
	}
	return fmt.Sprintf("%s (custom)", s.Name)
}

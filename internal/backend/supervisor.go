package backend

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/f1re/watchdog/internal/types"
)

// UnitStatus is what a process supervisor reports for a unit or job
type UnitStatus string

const (
	UnitRunning UnitStatus = "running"
	UnitStopped UnitStatus = "stopped"
	UnitUnknown UnitStatus = "unknown"
)

// SupervisorClient talks to one kind of OS process supervisor
type SupervisorClient interface {
	// Status reports whether label is running, with a human-readable detail
	Status(ctx context.Context, label string) (UnitStatus, string, error)
	// Restart asks the supervisor to restart label
	Restart(ctx context.Context, label string) error
	// Describe returns the supervisor's verbose status text for diagnostics
	Describe(ctx context.Context, label string) (string, error)
}

// describeLimit bounds supervisor status text kept in diagnostics
const describeLimit = 500

// Systemd drives units through systemctl
type Systemd struct {
	Runner Runner
	// User adds --user to every systemctl call
	User bool
}

func (s *Systemd) systemctl(ctx context.Context, args ...string) (*CommandResult, error) {
	if s.User {
		args = append([]string{"--user"}, args...)
	}
	return s.Runner.Run(ctx, "systemctl", args...)
}

// Status implements SupervisorClient using systemctl is-active
func (s *Systemd) Status(ctx context.Context, label string) (UnitStatus, string, error) {
	res, err := s.systemctl(ctx, "is-active", label)
	if err != nil {
		return UnitUnknown, "", err
	}
	state := strings.TrimSpace(res.Output)
	switch state {
	case "active", "reloading":
		return UnitRunning, state, nil
	case "inactive", "failed", "deactivating", "activating":
		return UnitStopped, state, nil
	}
	return UnitUnknown, state, nil
}

// Restart implements SupervisorClient using systemctl restart
func (s *Systemd) Restart(ctx context.Context, label string) error {
	res, err := s.systemctl(ctx, "restart", label)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("systemctl restart %s exited %d: %s", label, res.ExitCode, truncate(strings.TrimSpace(res.Output), describeLimit))
	}
	return nil
}

// Describe implements SupervisorClient using systemctl status
func (s *Systemd) Describe(ctx context.Context, label string) (string, error) {
	// systemctl status exits 3 for inactive units; the text is still useful
	res, err := s.systemctl(ctx, "status", "--no-pager", label)
	if err != nil {
		return "", err
	}
	return truncate(strings.TrimSpace(res.Output), describeLimit), nil
}

// Launchd drives jobs through launchctl in the user's GUI domain
type Launchd struct {
	Runner Runner
	// UID selects the gui/<uid> domain; zero means the current user
	UID int
}

func (l *Launchd) domain() string {
	uid := l.UID
	if uid == 0 {
		uid = os.Getuid()
	}
	return fmt.Sprintf("gui/%d", uid)
}

// launchdJob is one row of launchctl list
type launchdJob struct {
	PID        string
	LastStatus string
	Found      bool
}

func (l *Launchd) lookup(ctx context.Context, label string) (launchdJob, error) {
	res, err := l.Runner.Run(ctx, "launchctl", "list")
	if err != nil {
		return launchdJob{}, err
	}
	if !res.Success() {
		return launchdJob{}, fmt.Errorf("launchctl list exited %d", res.ExitCode)
	}
	return parseLaunchctlList(res.Output, label), nil
}

// parseLaunchctlList finds label in "PID\tStatus\tLabel" rows
func parseLaunchctlList(output, label string) launchdJob {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 3 && fields[2] == label {
			return launchdJob{PID: fields[0], LastStatus: fields[1], Found: true}
		}
	}
	return launchdJob{}
}

// Status implements SupervisorClient
func (l *Launchd) Status(ctx context.Context, label string) (UnitStatus, string, error) {
	job, err := l.lookup(ctx, label)
	if err != nil {
		return UnitUnknown, "", err
	}
	if !job.Found {
		return UnitStopped, "not loaded", nil
	}
	if job.PID == "-" {
		return UnitStopped, fmt.Sprintf("not running, last exit status %s", job.LastStatus), nil
	}
	return UnitRunning, fmt.Sprintf("pid %s", job.PID), nil
}

// Restart implements SupervisorClient using launchctl kickstart -k
func (l *Launchd) Restart(ctx context.Context, label string) error {
	target := l.domain() + "/" + label
	res, err := l.Runner.Run(ctx, "launchctl", "kickstart", "-k", target)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("launchctl kickstart %s exited %d: %s", target, res.ExitCode, truncate(strings.TrimSpace(res.Output), describeLimit))
	}
	return nil
}

// Describe implements SupervisorClient
func (l *Launchd) Describe(ctx context.Context, label string) (string, error) {
	job, err := l.lookup(ctx, label)
	if err != nil {
		return "", err
	}
	if !job.Found {
		return fmt.Sprintf("%s: not loaded", label), nil
	}
	return fmt.Sprintf("%s: pid=%s last_exit_status=%s", label, job.PID, job.LastStatus), nil
}

// NewSupervisorClients returns the clients for every supported supervisor
func NewSupervisorClients(r Runner) map[types.SupervisorKind]SupervisorClient {
	return map[types.SupervisorKind]SupervisorClient{
		types.SupervisorSystemd: &Systemd{Runner: r},
		types.SupervisorLaunchd: &Launchd{Runner: r},
	}
}

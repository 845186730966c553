package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fakeRunner answers commands by their joined command line
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, cmdline string) (*CommandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*CommandResult, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, line)
	f.mu.Unlock()
	return f.fn(ctx, line)
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func exitWith(code int, output string) (*CommandResult, error) {
	return &CommandResult{ExitCode: code, Output: output}, nil
}

type fakeSupervisor struct {
	status     UnitStatus
	detail     string
	statusErr  error
	restartErr error
	describe   string

	mu       sync.Mutex
	restarts int
}

func (f *fakeSupervisor) Status(context.Context, string) (UnitStatus, string, error) {
	return f.status, f.detail, f.statusErr
}

func (f *fakeSupervisor) Restart(context.Context, string) error {
	f.mu.Lock()
	f.restarts++
	f.mu.Unlock()
	return f.restartErr
}

func (f *fakeSupervisor) Describe(context.Context, string) (string, error) {
	return f.describe, nil
}

func staticPort(listening bool) PortChecker {
	return func(context.Context, int) bool { return listening }
}

// hang blocks until the context ends, then fails the way ExecRunner does
func hang(ctx context.Context, _ string) (*CommandResult, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("sh: %w", ErrTimedOut)
}

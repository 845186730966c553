package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// ErrTimedOut is returned when a command or sub-check exceeds its deadline
var ErrTimedOut = errors.New("timed out")

// defaultMaxOutput bounds captured command output
const defaultMaxOutput = 64 * 1024

// CommandResult is the outcome of a command that ran to completion
type CommandResult struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Success reports whether the command exited zero
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Runner executes external commands. The error return is reserved for
// commands that could not be started or did not finish in time; a non-zero
// exit is reported through CommandResult.ExitCode.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*CommandResult, error)
}

// ExecRunner runs commands with os/exec, capturing combined stdout and stderr
type ExecRunner struct {
	// MaxOutput caps captured output in bytes (default 64KiB)
	MaxOutput int
	// WaitDelay bounds how long Wait blocks on inherited pipes after the
	// context kills the process (default 2s)
	WaitDelay time.Duration
	// Dir is the working directory; empty means the current one
	Dir string
	// KeepTail keeps the last MaxOutput bytes instead of the first
	KeepTail bool
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	limit := r.MaxOutput
	if limit <= 0 {
		limit = defaultMaxOutput
	}
	out := &limitedBuffer{max: limit, keepTail: r.KeepTail}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	result := &CommandResult{Output: out.String(), Duration: time.Since(start)}

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%s: %w after %v", name, ErrTimedOut, result.Duration.Round(time.Millisecond))
		}
		return result, fmt.Errorf("%s: %w", name, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return result, nil
}

// Shell runs command through sh -c
func Shell(ctx context.Context, r Runner, command string) (*CommandResult, error) {
	return r.Run(ctx, "sh", "-c", command)
}

// limitedBuffer keeps the first max bytes written and drops the rest, or
// the last max bytes when keepTail is set
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	keepTail  bool
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.keepTail {
		b.buf.Write(p)
		if over := b.buf.Len() - b.max; over > 0 {
			b.buf.Next(over)
			b.truncated = true
		}
		return len(p), nil
	}
	remaining := b.max - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		if b.keepTail {
			return "[output truncated]\n" + b.buf.String()
		}
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}

// truncate shortens s to max bytes
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

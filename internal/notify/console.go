package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/f1re/watchdog/internal/types"
)

// Console prints reports to a terminal. It is always enabled so that a
// report is visible even when no remote channel is configured.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out, or stderr when out is nil
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out}
}

// Name implements Notifier
func (c *Console) Name() string {
	return "console"
}

// Send implements Notifier
func (c *Console) Send(_ context.Context, r *types.RecoveryReport) error {
	headline := color.New(color.FgRed, color.Bold)
	if r.Succeeded() {
		headline = color.New(color.FgGreen, color.Bold)
	}

	text := FormatText(r)
	title, body, _ := strings.Cut(text, "\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := headline.Fprintln(c.out, title); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if _, err := fmt.Fprintln(c.out, body); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Announce implements Announcer
func (c *Console) Announce(_ context.Context, s Startup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := color.New(color.FgCyan).Fprintf(c.out, "Watchdog started: monitoring %s every %s (max %d simple restarts, agent %s)\n",
		strings.Join(s.Services, ", "), s.Interval, s.MaxRestarts, s.Agent)
	return err
}

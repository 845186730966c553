// Package notify delivers recovery and failure reports to operators.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/f1re/watchdog/internal/metrics"
	"github.com/f1re/watchdog/internal/types"
)

// Notifier delivers a report. Implementations are shared by every service
// loop and must be safe for concurrent use. Delivery is attempted once;
// callers log the error and move on.
type Notifier interface {
	Name() string
	Send(ctx context.Context, report *types.RecoveryReport) error
}

// Announcer is implemented by notifiers that can post a startup message
type Announcer interface {
	Announce(ctx context.Context, s Startup) error
}

// Startup summarises what the watchdog is about to monitor
type Startup struct {
	Services    []string
	Interval    time.Duration
	MaxRestarts int
	Agent       string
}

// Multi fans a report out to several notifiers
type Multi struct {
	notifiers []Notifier
}

// NewMulti combines notifiers; nil entries are skipped
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name implements Notifier
func (m *Multi) Name() string {
	return "multi"
}

// Send delivers to every notifier, even after one fails, and joins the errors
func (m *Multi) Send(ctx context.Context, report *types.RecoveryReport) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Send(ctx, report)
		metrics.ObserveNotification(n.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Announce forwards the startup message to every notifier that supports it
func (m *Multi) Announce(ctx context.Context, s Startup) error {
	var errs []error
	for _, n := range m.notifiers {
		a, ok := n.(Announcer)
		if !ok {
			continue
		}
		if err := a.Announce(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/logging"
)

// SchedulerConfig configures the supervisor tree
type SchedulerConfig struct {
	Interval time.Duration
	// ShutdownGrace is how long an in-flight tick may keep running after
	// shutdown begins before its context is cancelled
	ShutdownGrace time.Duration

	// Restart policy for crashed loops (defaults 5 failures, 30s decay, 5s backoff)
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
}

// Scheduler runs one supervised control loop per controller, plus any
// supporting services, in a suture tree. A panic in one loop restarts only
// that loop; the controller keeps its state across the restart.
type Scheduler struct {
	cfg      SchedulerConfig
	root     *suture.Supervisor
	services *suture.Supervisor
	support  *suture.Supervisor
	loops    []*serviceLoop
}

// NewScheduler builds the tree. Controllers are added with AddController.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 5 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	// loops wind down within the grace period; the margin covers the
	// cancelled tick returning
	stopTimeout := cfg.ShutdownGrace + 5*time.Second

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          stopTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = handler.MustHook()

	root := suture.New("watchdog", rootSpec)
	services := suture.New("services", spec)
	support := suture.New("support", spec)
	root.Add(services)
	root.Add(support)

	return &Scheduler{cfg: cfg, root: root, services: services, support: support}
}

// AddController schedules c on its own loop
func (s *Scheduler) AddController(c *Controller) {
	loop := &serviceLoop{controller: c, interval: s.cfg.Interval, grace: s.cfg.ShutdownGrace}
	s.loops = append(s.loops, loop)
	s.services.Add(loop)
}

// AddService adds a supporting service such as the metrics server
func (s *Scheduler) AddService(svc suture.Service) {
	s.support.Add(svc)
}

// Serve runs every loop until ctx is cancelled, then waits for in-flight
// ticks up to the shutdown grace
func (s *Scheduler) Serve(ctx context.Context) error {
	log := logging.Component("scheduler")
	log.Info().
		Int("services", len(s.loops)).
		Dur("interval", s.cfg.Interval).
		Msg("Scheduler starting")

	err := s.root.Serve(ctx)

	if report, rerr := s.root.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			log.Warn().Str("service", u.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scheduler stopped: %w", err)
	}
	log.Info().Msg("Scheduler stopped")
	return nil
}

// serviceLoop ticks one controller on a fixed interval
type serviceLoop struct {
	controller *Controller
	interval   time.Duration
	grace      time.Duration
}

// Serve implements suture.Service. The first tick runs immediately.
func (l *serviceLoop) Serve(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		l.runTick(ctx)
		timer.Reset(l.interval)
	}
}

// runTick gives the tick a context that outlives ctx by the shutdown grace,
// so an escalation in flight at shutdown can finish or is abandoned at the
// deadline instead of being cut off immediately
func (l *serviceLoop) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		grace := time.NewTimer(l.grace)
		defer grace.Stop()
		select {
		case <-done:
		case <-grace.C:
			state := l.controller.State()
			log := logging.ForService(l.controller.Name())
			log.Warn().
				Str("phase", state.String()).
				Str("episode", state.EpisodeID).
				Dur("grace", l.grace).
				Msg("Abandoning in-flight tick at shutdown")
			l.controller.record(ctx, events.New(events.EventTypeTickAbandoned, l.controller.Name(), state.EpisodeID,
				state.Phase, events.SeverityError, fmt.Sprintf("tick abandoned after %s shutdown grace", l.grace)))
			cancel()
		}
	}()

	l.controller.Tick(tickCtx)
}

func (l *serviceLoop) String() string {
	return "service:" + l.controller.Name()
}

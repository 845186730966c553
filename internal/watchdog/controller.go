// Package watchdog runs one escalation state machine per monitored service:
// probe, bounded simple restarts, a single agent escalation per failure
// episode, and one report to the operator.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/f1re/watchdog/internal/agent"
	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/logging"
	"github.com/f1re/watchdog/internal/metrics"
	"github.com/f1re/watchdog/internal/notify"
	"github.com/f1re/watchdog/internal/types"
)

// ErrAgentTimeout is recorded when the agent does not return within the agent timeout
var ErrAgentTimeout = errors.New("agent timed out")

// recordTimeout bounds each history write
const recordTimeout = 5 * time.Second

// Recorder persists episodes and events. Failures are logged and never
// affect the state machine.
type Recorder interface {
	UpsertEpisode(ctx context.Context, episode *types.Episode) error
	StoreEvent(ctx context.Context, event *events.Event) error
}

// ControllerConfig wires one controller
type ControllerConfig struct {
	Spec     *types.ServiceSpec
	Backend  backend.Backend
	Agent    agent.Agent
	Notifier notify.Notifier
	// Recorder and Monitor are optional
	Recorder Recorder
	Monitor  *Monitor

	MaxSimpleRestarts int
	SettleDelay       time.Duration
	AgentTimeout      time.Duration
	NotifyTimeout     time.Duration
	// FailedCooldown > 0 starts a fresh episode after that long in Failed.
	// The restart budget is reset then even though no probe has passed, the
	// one case where FailureCount drops without the service being healthy.
	FailedCooldown time.Duration
}

// Controller is the escalation state machine of one service. Its runtime
// state is owned by whichever goroutine holds tickMu; State returns a copy
// that is safe to read from anywhere.
type Controller struct {
	cfg ControllerConfig
	log zerolog.Logger

	tickMu   sync.Mutex
	state    types.ServiceRuntimeState
	episode  *types.Episode
	report   *types.RecoveryReport
	snapshot atomic.Pointer[types.ServiceRuntimeState]

	// sleep waits out the settle delay; tests replace it
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewController creates a controller starting in Healthy
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Spec == nil {
		return nil, fmt.Errorf("service spec is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Agent == nil {
		cfg.Agent = agent.Noop{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewMulti()
	}
	if cfg.MaxSimpleRestarts < 0 {
		return nil, fmt.Errorf("max simple restarts cannot be negative")
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 10 * time.Minute
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}

	c := &Controller{
		cfg:   cfg,
		log:   logging.ForService(cfg.Spec.Name),
		state: types.ServiceRuntimeState{Phase: types.PhaseHealthy},
		sleep: sleepContext,
		now:   time.Now,
	}
	c.publish()
	metrics.SetPhase(cfg.Spec.Name, types.PhaseHealthy)
	return c, nil
}

// Name is the monitored service's name
func (c *Controller) Name() string {
	return c.cfg.Spec.Name
}

// Spec is the monitored service's configuration
func (c *Controller) Spec() *types.ServiceSpec {
	return c.cfg.Spec
}

// State returns a copy of the current runtime state
func (c *Controller) State() types.ServiceRuntimeState {
	return *c.snapshot.Load()
}

// Tick evaluates the state machine once. A tick that arrives while another
// is still running for this service is dropped and Tick returns false.
func (c *Controller) Tick(ctx context.Context) bool {
	if !c.tickMu.TryLock() {
		c.logger().Debug().Msg("Tick skipped: previous tick still running")
		return false
	}
	defer c.tickMu.Unlock()
	defer c.publish()

	start := time.Now()
	defer func() { metrics.ObserveTick(c.cfg.Spec.Name, time.Since(start)) }()

	switch c.state.Phase {
	case types.PhaseEscalating:
		// Only reachable when a previous tick died mid-escalation
		c.escalate(ctx)
	case types.PhaseRecovering:
		c.confirm(ctx, c.report)
	case types.PhaseFailed:
		c.tickFailed(ctx)
	default:
		c.tickProbe(ctx)
	}
	return true
}

// tickProbe handles Healthy, Probing and Restarting
func (c *Controller) tickProbe(ctx context.Context) {
	res := c.probe(ctx)
	if res.Healthy {
		if c.state.Phase != types.PhaseHealthy {
			c.recovered(ctx, "probe passed")
		}
		return
	}

	if c.state.Phase == types.PhaseHealthy {
		c.openEpisode(ctx)
		c.transition(ctx, types.PhaseProbing, "probe failed: "+res.Detail)
	}
	c.afterFailedProbe(ctx, res)
}

// afterFailedProbe either spends one simple restart or escalates when the
// restart budget is exhausted
func (c *Controller) afterFailedProbe(ctx context.Context, res types.HealthResult) {
	if c.state.FailureCount >= c.cfg.MaxSimpleRestarts {
		c.transition(ctx, types.PhaseEscalating, fmt.Sprintf("%d simple restarts exhausted", c.state.FailureCount))
		c.escalate(ctx)
		return
	}

	c.state.FailureCount++
	attempt := c.state.FailureCount
	c.transition(ctx, types.PhaseRestarting, fmt.Sprintf("restart attempt %d: %s", attempt, res.Detail))

	rr := c.cfg.Backend.Restart(ctx, c.cfg.Spec)
	metrics.ObserveRestart(c.cfg.Spec.Name, rr.Issued)
	if c.episode != nil {
		c.episode.Restarts = attempt
	}

	data := events.RestartData{Attempt: attempt, Issued: rr.Issued, Error: rr.Error(), Duration: rr.Duration}
	if !rr.Issued {
		c.logger().Warn().Int("attempt", attempt).Str("error", rr.Error()).Msg("Restart could not be issued")
	} else {
		c.logger().Info().Int("attempt", attempt).Str("detail", rr.Detail).Msg("Restart issued")
	}

	if err := c.sleep(ctx, c.cfg.SettleDelay); err != nil {
		data.ProbeAfter = "skipped: " + err.Error()
		c.record(ctx, events.NewRestartEvent(c.cfg.Spec.Name, c.state.EpisodeID, data))
		c.transition(ctx, types.PhaseProbing, "settle delay interrupted")
		return
	}

	after := c.probe(ctx)
	data.Recovered = after.Healthy
	data.ProbeAfter = after.Detail
	c.record(ctx, events.NewRestartEvent(c.cfg.Spec.Name, c.state.EpisodeID, data))
	c.persistEpisode(ctx)

	if after.Healthy {
		c.recovered(ctx, fmt.Sprintf("healthy after restart attempt %d", attempt))
		return
	}
	c.transition(ctx, types.PhaseProbing, fmt.Sprintf("still unhealthy after restart attempt %d: %s", attempt, after.Detail))
}

// escalate collects diagnostics and invokes the agent, at most once per episode
func (c *Controller) escalate(ctx context.Context) {
	if c.state.Escalated {
		c.fail(ctx, c.failureReport(errors.New("escalation interrupted before the agent reported")), "escalation interrupted")
		return
	}
	c.state.Escalated = true
	if c.episode != nil {
		c.episode.Escalated = true
	}
	c.persistEpisode(ctx)
	c.publish()

	c.logger().Warn().Int("restarts", c.state.FailureCount).Str("agent", c.cfg.Agent.Name()).Msg("Escalating to agent")
	c.record(ctx, events.New(events.EventTypeEscalationStarted, c.cfg.Spec.Name, c.state.EpisodeID,
		types.PhaseEscalating, events.SeverityWarning, "collecting diagnostics for "+c.cfg.Agent.Name()))

	diag := c.cfg.Backend.Collect(ctx, c.cfg.Spec)
	start := time.Now()
	report, err := c.invokeAgent(ctx, diag)
	failReason := "agent reported failure"
	if err != nil {
		c.logger().Error().Err(err).Msg("Agent failed")
		report = c.failureReport(err)
		failReason = agentFailureReason(ctx, err)
	}
	report.Duration = time.Since(start)
	metrics.ObserveEscalation(c.cfg.Spec.Name, report.Outcome)

	c.record(ctx, events.NewEscalationEvent(c.cfg.Spec.Name, c.state.EpisodeID, events.EscalationData{
		Agent:     c.cfg.Agent.Name(),
		Outcome:   report.Outcome,
		RootCause: report.RootCause,
		Error:     report.Error,
		Duration:  report.Duration,
	}))
	if c.episode != nil {
		c.episode.Outcome = report.Outcome
		c.episode.RootCause = report.RootCause
		c.episode.Actions = report.Actions
	}

	if report.Outcome == types.OutcomeFailed {
		c.fail(ctx, report, failReason)
		return
	}
	c.report = report
	c.transition(ctx, types.PhaseRecovering, fmt.Sprintf("agent reported %s", report.Outcome))
	c.confirm(ctx, report)
}

// invokeAgent runs the agent bounded by the agent timeout. The agent runs on
// its own goroutine so one that ignores its context is abandoned.
func (c *Controller) invokeAgent(ctx context.Context, diag *types.Diagnostics) (*types.RecoveryReport, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AgentTimeout)
	defer cancel()

	type result struct {
		report *types.RecoveryReport
		err    error
	}
	ch := make(chan result, 1)
	req := &agent.Request{
		Spec:        c.cfg.Spec,
		Diagnostics: diag,
		EpisodeID:   c.state.EpisodeID,
		Attempts:    c.state.FailureCount,
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("agent panicked: %v", p)}
			}
		}()
		rep, err := c.cfg.Agent.Invoke(actx, req)
		ch <- result{rep, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && actx.Err() != nil {
			// the agent noticed the deadline before we did
			return nil, c.agentDeadline(ctx)
		}
		if r.err == nil && r.report == nil {
			return nil, fmt.Errorf("agent returned no report")
		}
		return r.report, r.err
	case <-actx.Done():
		return nil, c.agentDeadline(ctx)
	}
}

func agentFailureReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "escalation abandoned"
	case errors.Is(err, ErrAgentTimeout):
		return "agent timed out"
	default:
		return "agent error: " + err.Error()
	}
}

// agentDeadline tells a shutdown apart from the agent timeout
func (c *Controller) agentDeadline(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("escalation abandoned: %w", ctx.Err())
	}
	return fmt.Errorf("%w after %s", ErrAgentTimeout, c.cfg.AgentTimeout)
}

// confirm re-probes after the agent claimed (or could not tell) recovery
func (c *Controller) confirm(ctx context.Context, report *types.RecoveryReport) {
	if report == nil {
		report = c.failureReport(errors.New("escalation interrupted before confirmation"))
	}
	res := c.probe(ctx)
	if !res.Healthy {
		if report.Outcome != types.OutcomeFailed {
			report.AgentOutcome = report.Outcome
			report.Outcome = types.OutcomeFailed
		}
		if c.episode != nil {
			c.episode.Outcome = types.OutcomeFailed
		}
		c.fail(ctx, report, "confirmation probe failed: "+res.Detail)
		return
	}

	report.Confirmed = true
	c.notify(ctx, report, types.PhaseRecovering)
	c.recovered(ctx, "confirmed healthy after escalation")
}

// tickFailed keeps probing a failed service without re-invoking the agent
func (c *Controller) tickFailed(ctx context.Context) {
	res := c.probe(ctx)
	if res.Healthy {
		c.logger().Info().Msg("Failed service is healthy again")
		c.recovered(ctx, "healthy again after failure")
		return
	}

	if c.cfg.FailedCooldown > 0 && c.now().Sub(c.state.FailedAt) >= c.cfg.FailedCooldown {
		c.logger().Warn().Dur("cooldown", c.cfg.FailedCooldown).Msg("Failed cooldown expired, starting a new episode")
		c.closeEpisode(ctx, types.PhaseFailed)
		c.state.FailureCount = 0
		c.openEpisode(ctx)
		c.transition(ctx, types.PhaseProbing, "failed cooldown expired")
		c.afterFailedProbe(ctx, res)
	}
}

// fail enters Failed and sends the failure report once for the episode
func (c *Controller) fail(ctx context.Context, report *types.RecoveryReport, reason string) {
	c.state.FailedAt = c.now()
	c.transition(ctx, types.PhaseFailed, reason)
	c.notify(ctx, report, types.PhaseFailed)
	c.report = nil
}

// recovered closes the current episode and returns to Healthy
func (c *Controller) recovered(ctx context.Context, reason string) {
	c.state.LastHealthy = c.now()
	c.transition(ctx, types.PhaseHealthy, reason)
	c.closeEpisode(ctx, types.PhaseHealthy)
	c.state.FailureCount = 0
	c.report = nil
}

// notify delivers report once per episode, bounded by the notify timeout
func (c *Controller) notify(ctx context.Context, report *types.RecoveryReport, phase types.Phase) {
	if c.state.Notified {
		c.logger().Debug().Msg("Report already sent for this episode")
		return
	}
	c.state.Notified = true
	if c.episode != nil {
		c.episode.Notified = true
	}
	report.EpisodeID = c.state.EpisodeID
	report.Service = c.cfg.Spec.Name
	report.Attempts = c.state.FailureCount
	if report.CreatedAt.IsZero() {
		report.CreatedAt = c.now()
	}

	// delivered even when the tick was abandoned at shutdown
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.NotifyTimeout)
	defer cancel()
	err := c.cfg.Notifier.Send(nctx, report)
	if err != nil {
		c.logger().Error().Err(err).Msg("Failed to deliver report")
	} else {
		c.logger().Info().Str("outcome", string(report.Outcome)).Bool("confirmed", report.Confirmed).Msg("Report delivered")
	}
	c.record(ctx, events.NewNotificationEvent(c.cfg.Spec.Name, c.state.EpisodeID, phase, err))
	c.persistEpisode(ctx)
}

// failureReport builds the report for an agent that errored or timed out
func (c *Controller) failureReport(err error) *types.RecoveryReport {
	return &types.RecoveryReport{
		Service:   c.cfg.Spec.Name,
		EpisodeID: c.state.EpisodeID,
		Outcome:   types.OutcomeFailed,
		Attempts:  c.state.FailureCount,
		Error:     err.Error(),
		CreatedAt: c.now(),
	}
}

func (c *Controller) probe(ctx context.Context) types.HealthResult {
	res := c.cfg.Backend.Probe(ctx, c.cfg.Spec)
	c.state.LastCheck = c.now()
	metrics.ObserveProbe(c.cfg.Spec.Name, res.Healthy)
	if res.Healthy {
		c.state.LastHealthy = c.state.LastCheck
	} else {
		c.logger().Debug().Str("detail", res.Detail).Msg("Probe failed")
	}
	return res
}

func (c *Controller) openEpisode(ctx context.Context) {
	now := c.now()
	c.state.EpisodeID = uuid.New().String()
	c.state.EpisodeFrom = now
	c.state.Escalated = false
	c.state.Notified = false
	c.state.FailedAt = time.Time{}
	c.episode = &types.Episode{
		ID:         c.state.EpisodeID,
		Service:    c.cfg.Spec.Name,
		StartedAt:  now,
		FinalPhase: types.PhaseProbing,
	}
	c.logger().Warn().Msg("Failure episode opened")
	c.persistEpisode(ctx)
}

func (c *Controller) closeEpisode(ctx context.Context, final types.Phase) {
	if c.episode == nil {
		c.state.EpisodeID = ""
		return
	}
	end := c.now()
	c.episode.EndedAt = &end
	c.episode.FinalPhase = final
	c.persistEpisode(ctx)

	c.record(ctx, events.New(events.EventTypeEpisodeClosed, c.cfg.Spec.Name, c.episode.ID, final, events.SeverityInfo,
		fmt.Sprintf("episode closed as %s after %s", final, end.Sub(c.episode.StartedAt).Round(time.Second))))
	c.logger().Info().Str("final_phase", string(final)).Int("restarts", c.episode.Restarts).Msg("Failure episode closed")

	c.episode = nil
	c.state.EpisodeID = ""
	c.state.Escalated = false
	c.state.Notified = false
	c.state.EpisodeFrom = time.Time{}
}

// transition moves to phase, logging and recording the change
func (c *Controller) transition(ctx context.Context, to types.Phase, reason string) {
	from := c.state.Phase
	c.state.Phase = to
	if c.episode != nil && to != types.PhaseHealthy {
		c.episode.FinalPhase = to
	}
	metrics.SetPhase(c.cfg.Spec.Name, to)
	c.publish()

	if c.cfg.Monitor != nil {
		c.cfg.Monitor.Record(Transition{
			Service:      c.cfg.Spec.Name,
			EpisodeID:    c.state.EpisodeID,
			From:         from,
			To:           to,
			FailureCount: c.state.FailureCount,
			Reason:       reason,
			Timestamp:    c.now(),
		})
	}
	c.logger().Info().Str("from", string(from)).Str("reason", reason).Msg("Phase transition")
	c.record(ctx, events.NewTransitionEvent(c.cfg.Spec.Name, c.state.EpisodeID, events.TransitionData{
		From:         from,
		To:           to,
		FailureCount: c.state.FailureCount,
		Reason:       reason,
	}))
}

func (c *Controller) persistEpisode(ctx context.Context) {
	if c.cfg.Recorder == nil || c.episode == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.cfg.Recorder.UpsertEpisode(rctx, c.episode); err != nil {
		c.logger().Warn().Err(err).Msg("Failed to record episode")
	}
}

func (c *Controller) record(ctx context.Context, e *events.Event) {
	if c.cfg.Recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.cfg.Recorder.StoreEvent(rctx, e); err != nil {
		c.logger().Warn().Err(err).Str("event_type", string(e.Type)).Msg("Failed to record event")
	}
}

// logger carries the service, phase and episode of the current state
func (c *Controller) logger() *zerolog.Logger {
	l := c.log.With().
		Str("phase", c.state.String()).
		Str("episode", c.state.EpisodeID).
		Logger()
	return &l
}

func (c *Controller) publish() {
	s := c.state
	c.snapshot.Store(&s)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

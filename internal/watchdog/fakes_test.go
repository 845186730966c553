package watchdog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/f1re/watchdog/internal/agent"
	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/types"
)

// fakeBackend reports whatever health it is set to
type fakeBackend struct {
	healthy    atomic.Bool
	restartErr error
	// onRestart runs after each restart, e.g. to bring the service back
	onRestart    func(b *fakeBackend)
	probePanic   atomic.Bool
	collectPanic atomic.Bool

	probes   atomic.Int32
	restarts atomic.Int32
	collects atomic.Int32
}

func (b *fakeBackend) Probe(context.Context, *types.ServiceSpec) types.HealthResult {
	b.probes.Add(1)
	if b.probePanic.Load() {
		panic("probe exploded")
	}
	if b.healthy.Load() {
		return types.Healthy("ok")
	}
	return types.Unhealthy("connection refused")
}

func (b *fakeBackend) Restart(context.Context, *types.ServiceSpec) types.RestartResult {
	b.restarts.Add(1)
	if b.restartErr != nil {
		return types.RestartResult{Issued: false, Err: b.restartErr}
	}
	if b.onRestart != nil {
		b.onRestart(b)
	}
	return types.RestartResult{Issued: true, Detail: "restarted"}
}

func (b *fakeBackend) Collect(_ context.Context, spec *types.ServiceSpec) *types.Diagnostics {
	b.collects.Add(1)
	if b.collectPanic.Load() {
		panic("collector exploded")
	}
	return &types.Diagnostics{Service: spec.Name, ProcessStatus: "stopped", LogStatus: types.LogUnavailable}
}

// fakeAgent returns a scripted outcome, optionally blocking first
type fakeAgent struct {
	outcome types.Outcome
	err     error
	// started is signalled when Invoke begins; release unblocks it
	started chan struct{}
	release chan struct{}
	// ignoreCtx makes a blocked Invoke wait for release only
	ignoreCtx bool
	onInvoke  func(req *agent.Request)

	calls      atomic.Int32
	phaseMu    sync.Mutex
	phaseAtRun []types.Phase
	controller *Controller
}

func (a *fakeAgent) Name() string { return "fake" }

func (a *fakeAgent) Invoke(ctx context.Context, req *agent.Request) (*types.RecoveryReport, error) {
	a.calls.Add(1)
	if a.controller != nil {
		a.phaseMu.Lock()
		a.phaseAtRun = append(a.phaseAtRun, a.controller.State().Phase)
		a.phaseMu.Unlock()
	}
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.release != nil {
		if a.ignoreCtx {
			<-a.release
		} else {
			select {
			case <-a.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if a.onInvoke != nil {
		a.onInvoke(req)
	}
	if a.err != nil {
		return nil, a.err
	}
	return &types.RecoveryReport{Outcome: a.outcome, RootCause: "disk full", Actions: []string{"cleaned disk"}}, nil
}

// fakeNotifier records every report it is asked to deliver
type fakeNotifier struct {
	mu      sync.Mutex
	reports []types.RecoveryReport
	err     error
	// honorCtx fails delivery on a done context, like a real network notifier
	honorCtx bool
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Send(ctx context.Context, r *types.RecoveryReport) error {
	if n.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, *r)
	return n.err
}

func (n *fakeNotifier) Reports() []types.RecoveryReport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.RecoveryReport(nil), n.reports...)
}

// fakeRecorder keeps the latest copy of each episode and every event
type fakeRecorder struct {
	mu       sync.Mutex
	episodes map[string]types.Episode
	events   []*events.Event
	fail     bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{episodes: map[string]types.Episode{}}
}

func (r *fakeRecorder) UpsertEpisode(_ context.Context, ep *types.Episode) error {
	if r.fail {
		return errors.New("database is locked")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodes[ep.ID] = *ep
	return nil
}

func (r *fakeRecorder) StoreEvent(_ context.Context, e *events.Event) error {
	if r.fail {
		return errors.New("database is locked")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *fakeRecorder) Episode(id string) (types.Episode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.episodes[id]
	return ep, ok
}

func (r *fakeRecorder) CountType(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/f1re/watchdog/internal/types"
)

// Dispatcher routes each call to the backend named by the service spec
type Dispatcher struct {
	backends map[types.BackendKind]Backend
}

// Config wires a Dispatcher. Nil fields get production implementations.
type Config struct {
	Options     Options
	Runner      Runner
	Supervisors map[types.SupervisorKind]SupervisorClient
	PortChecker PortChecker
}

// New builds a Dispatcher with the supervisor and custom backends
func New(cfg Config) *Dispatcher {
	if cfg.Runner == nil {
		cfg.Runner = &ExecRunner{}
	}
	if cfg.Supervisors == nil {
		cfg.Supervisors = NewSupervisorClients(cfg.Runner)
	}
	if cfg.PortChecker == nil {
		cfg.PortChecker = PortListening
	}
	shared := checks{opts: cfg.Options.withDefaults(), runner: cfg.Runner, portCheck: cfg.PortChecker}

	return &Dispatcher{
		backends: map[types.BackendKind]Backend{
			types.BackendSupervisor: &SupervisorBackend{checks: shared, clients: cfg.Supervisors},
			types.BackendCustom:     &CustomBackend{checks: shared},
		},
	}
}

func (d *Dispatcher) backend(spec *types.ServiceSpec) (Backend, bool) {
	b, ok := d.backends[spec.Backend]
	return b, ok
}

// Probe implements Backend
func (d *Dispatcher) Probe(ctx context.Context, spec *types.ServiceSpec) types.HealthResult {
	b, ok := d.backend(spec)
	if !ok {
		return types.Unhealthy(NoHealthCheck)
	}
	return b.Probe(ctx, spec)
}

// Restart implements Backend
func (d *Dispatcher) Restart(ctx context.Context, spec *types.ServiceSpec) types.RestartResult {
	b, ok := d.backend(spec)
	if !ok {
		return types.RestartResult{Err: fmt.Errorf("unknown backend %q", spec.Backend)}
	}
	return b.Restart(ctx, spec)
}

// Collect implements Backend
func (d *Dispatcher) Collect(ctx context.Context, spec *types.ServiceSpec) *types.Diagnostics {
	b, ok := d.backend(spec)
	if !ok {
		return &types.Diagnostics{
			Service:       spec.Name,
			ProcessStatus: fmt.Sprintf("%s: unknown backend %q", types.Unavailable, spec.Backend),
			PortStatus:    types.PortNotConfigured,
			LogStatus:     types.LogUnavailable,
			CapturedAt:    time.Now(),
		}
	}
	return b.Collect(ctx, spec)
}

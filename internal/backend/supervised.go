package backend

import (
	"context"
	"fmt"

	"github.com/f1re/watchdog/internal/types"
)

// SupervisorBackend probes and restarts services owned by a process supervisor
type SupervisorBackend struct {
	checks
	clients map[types.SupervisorKind]SupervisorClient
}

func (b *SupervisorBackend) client(spec *types.ServiceSpec) (SupervisorClient, error) {
	client, ok := b.clients[spec.Supervisor]
	if !ok {
		return nil, fmt.Errorf("no client for supervisor %q", spec.Supervisor)
	}
	return client, nil
}

// Probe is healthy iff the supervisor reports the unit running and, when
// configured, the port is listening and the health command passes
func (b *SupervisorBackend) Probe(ctx context.Context, spec *types.ServiceSpec) types.HealthResult {
	return b.boundedProbe(ctx, func(ctx context.Context) types.HealthResult {
		client, err := b.client(spec)
		if err != nil {
			return types.Unhealthy(err.Error())
		}
		status, detail, err := client.Status(ctx, spec.Label)
		if err != nil {
			return types.Unhealthy(fmt.Sprintf("%s status unavailable: %v", spec.Supervisor, err))
		}
		if status != UnitRunning {
			return types.Unhealthy(fmt.Sprintf("%s is %s (%s)", spec.Label, status, detail))
		}
		if spec.HasPort() {
			if res := b.port(ctx, spec.Port); !res.Healthy {
				return res
			}
		}
		if spec.HealthCheckCommand != "" {
			if res := b.healthCommand(ctx, spec.HealthCheckCommand); !res.Healthy {
				return res
			}
		}
		return types.Healthy(fmt.Sprintf("%s running (%s)", spec.Label, detail))
	})
}

// Restart asks the supervisor to restart the unit
func (b *SupervisorBackend) Restart(ctx context.Context, spec *types.ServiceSpec) types.RestartResult {
	return b.boundedRestart(ctx, func(ctx context.Context) (string, error) {
		client, err := b.client(spec)
		if err != nil {
			return "", err
		}
		if err := client.Restart(ctx, spec.Label); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s restart issued for %s", spec.Supervisor, spec.Label), nil
	})
}

// Collect gathers diagnostics, using the supervisor's verbose status as process status
func (b *SupervisorBackend) Collect(ctx context.Context, spec *types.ServiceSpec) *types.Diagnostics {
	return b.collect(ctx, spec, func(ctx context.Context) (string, error) {
		client, err := b.client(spec)
		if err != nil {
			return "", err
		}
		return client.Describe(ctx, spec.Label)
	})
}

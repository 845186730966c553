package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/f1re/watchdog/internal/types"
)

// processStatusCustom is the process status reported for command-driven services
const processStatusCustom = "not supervised (custom backend)"

// CustomBackend drives a service entirely through its configured shell commands
type CustomBackend struct {
	checks
}

// Probe runs the health command, falling back to the port check when only a
// port is configured
func (b *CustomBackend) Probe(ctx context.Context, spec *types.ServiceSpec) types.HealthResult {
	switch {
	case spec.HealthCheckCommand != "":
		return b.boundedProbe(ctx, func(ctx context.Context) types.HealthResult {
			return b.healthCommand(ctx, spec.HealthCheckCommand)
		})
	case spec.HasPort():
		return b.boundedProbe(ctx, func(ctx context.Context) types.HealthResult {
			return b.port(ctx, spec.Port)
		})
	}
	return types.Unhealthy(NoHealthCheck)
}

// Restart runs the restart command; a non-zero exit counts as not issued
func (b *CustomBackend) Restart(ctx context.Context, spec *types.ServiceSpec) types.RestartResult {
	if spec.RestartCommand == "" {
		return types.RestartResult{Issued: false, Err: ErrNoRestartCommand}
	}
	return b.boundedRestart(ctx, func(ctx context.Context) (string, error) {
		res, err := Shell(ctx, b.runner, spec.RestartCommand)
		if err != nil {
			return "", err
		}
		out := truncate(strings.TrimSpace(res.Output), 200)
		if !res.Success() {
			return "", fmt.Errorf("restart command exited %d: %s", res.ExitCode, out)
		}
		return out, nil
	})
}

// Collect gathers diagnostics for a command-driven service
func (b *CustomBackend) Collect(ctx context.Context, spec *types.ServiceSpec) *types.Diagnostics {
	return b.collect(ctx, spec, func(context.Context) (string, error) {
		return processStatusCustom, nil
	})
}

// Package backend implements health probes, restarts and diagnostics
// collection for each way a service can be driven: through the OS process
// supervisor (systemd, launchd) or through operator-supplied shell commands.
//
// Every operation is bounded by a timeout and never returns an error to the
// caller. Failures become unhealthy results, unissued restarts, or
// "unavailable" markers in the diagnostics snapshot.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f1re/watchdog/internal/types"
)

// NoHealthCheck is the probe detail for a service with nothing to check
const NoHealthCheck = "no health check configured"

// ErrNoRestartCommand is recorded when a custom service has no restart_command
var ErrNoRestartCommand = errors.New("no restart command configured")

// customCheckLimit bounds health command output kept in diagnostics
const customCheckLimit = 500

// Backend is the fixed capability set every service backend provides
type Backend interface {
	Probe(ctx context.Context, spec *types.ServiceSpec) types.HealthResult
	Restart(ctx context.Context, spec *types.ServiceSpec) types.RestartResult
	Collect(ctx context.Context, spec *types.ServiceSpec) *types.Diagnostics
}

// Options bounds backend operations
type Options struct {
	ProbeTimeout       time.Duration
	RestartTimeout     time.Duration
	DiagnosticsTimeout time.Duration
	LogTailLines       int
	LogTailBytes       int
}

// DefaultOptions returns the defaults used when a field is zero
func DefaultOptions() Options {
	return Options{
		ProbeTimeout:       10 * time.Second,
		RestartTimeout:     30 * time.Second,
		DiagnosticsTimeout: 10 * time.Second,
		LogTailLines:       30,
		LogTailBytes:       64 * 1024,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.RestartTimeout <= 0 {
		o.RestartTimeout = d.RestartTimeout
	}
	if o.DiagnosticsTimeout <= 0 {
		o.DiagnosticsTimeout = d.DiagnosticsTimeout
	}
	if o.LogTailLines <= 0 {
		o.LogTailLines = d.LogTailLines
	}
	if o.LogTailBytes <= 0 {
		o.LogTailBytes = d.LogTailBytes
	}
	return o
}

// PortChecker reports whether a local TCP port is accepting connections
type PortChecker func(ctx context.Context, port int) bool

// checks holds the probe pieces shared by every backend
type checks struct {
	opts      Options
	runner    Runner
	portCheck PortChecker
}

// runBounded runs fn with a deadline and returns when either fn finishes or
// the deadline passes. A fn that ignores its context is abandoned, not awaited.
// A panic in fn is returned as an error since it runs on its own goroutine.
func runBounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %v", ErrTimedOut, d)
		}
		return zero, ctx.Err()
	}
}

// healthCommand runs the custom health command; healthy means exit zero
func (c *checks) healthCommand(ctx context.Context, command string) types.HealthResult {
	res, err := Shell(ctx, c.runner, command)
	if err != nil {
		return types.Unhealthy(fmt.Sprintf("health check failed: %v", err))
	}
	if !res.Success() {
		detail := fmt.Sprintf("health check exited %d", res.ExitCode)
		if out := strings.TrimSpace(res.Output); out != "" {
			detail += ": " + truncate(out, 200)
		}
		return types.Unhealthy(detail)
	}
	return types.Healthy("health check passed")
}

func (c *checks) port(ctx context.Context, port int) types.HealthResult {
	if !c.portCheck(ctx, port) {
		return types.Unhealthy(fmt.Sprintf("port %d not listening", port))
	}
	return types.Healthy(fmt.Sprintf("port %d listening", port))
}

// boundedProbe applies the probe timeout to an entire probe
func (c *checks) boundedProbe(ctx context.Context, probe func(context.Context) types.HealthResult) types.HealthResult {
	res, err := runBounded(ctx, c.opts.ProbeTimeout, func(ctx context.Context) (types.HealthResult, error) {
		return probe(ctx), nil
	})
	if err != nil {
		return types.Unhealthy(fmt.Sprintf("probe %v", err))
	}
	return res
}

// boundedRestart applies the restart timeout and converts errors into an unissued result
func (c *checks) boundedRestart(ctx context.Context, restart func(context.Context) (string, error)) types.RestartResult {
	start := time.Now()
	detail, err := runBounded(ctx, c.opts.RestartTimeout, restart)
	if err != nil {
		return types.RestartResult{Issued: false, Err: err, Duration: time.Since(start)}
	}
	return types.RestartResult{Issued: true, Detail: detail, Duration: time.Since(start)}
}

// collect gathers every diagnostics sub-check concurrently. process supplies
// the backend-specific process status text.
func (c *checks) collect(ctx context.Context, spec *types.ServiceSpec, process func(context.Context) (string, error)) *types.Diagnostics {
	d := &types.Diagnostics{
		Service:    spec.Name,
		Port:       spec.Port,
		PortStatus: types.PortNotConfigured,
		LogFile:    spec.LogFile,
		LogStatus:  types.LogUnavailable,
	}

	var mu sync.Mutex
	unavailable := map[string]string{}
	mark := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		unavailable[name] = fmt.Sprintf("%s: %v", types.Unavailable, err)
	}

	timeout := c.opts.DiagnosticsTimeout
	g, gctx := errgroup.WithContext(ctx)

	var processStatus string
	g.Go(func() error {
		status, err := runBounded(gctx, timeout, process)
		if err != nil {
			mark("process_status", err)
			processStatus = types.Unavailable
			return nil
		}
		processStatus = status
		return nil
	})

	portStatus := types.PortNotConfigured
	if spec.HasPort() {
		g.Go(func() error {
			listening, err := runBounded(gctx, timeout, func(ctx context.Context) (bool, error) {
				return c.portCheck(ctx, spec.Port), nil
			})
			switch {
			case err != nil:
				mark("port", err)
				portStatus = types.PortNotListening
			case listening:
				portStatus = types.PortListening
			default:
				portStatus = types.PortNotListening
			}
			return nil
		})
	}

	var logTail []string
	logStatus := types.LogUnavailable
	if spec.LogFile == "" {
		mark("log_tail", errors.New("no log file configured"))
	} else {
		g.Go(func() error {
			lines, err := runBounded(gctx, timeout, func(context.Context) ([]string, error) {
				return TailFile(spec.LogFile, c.opts.LogTailLines, c.opts.LogTailBytes)
			})
			if err != nil {
				mark("log_tail", err)
				return nil
			}
			logTail = lines
			logStatus = types.LogCaptured
			return nil
		})
	}

	var customCheck *types.CheckOutput
	if spec.HealthCheckCommand != "" {
		g.Go(func() error {
			res, err := runBounded(gctx, timeout, func(ctx context.Context) (*CommandResult, error) {
				return Shell(ctx, c.runner, spec.HealthCheckCommand)
			})
			if err != nil {
				mark("custom_check", err)
				return nil
			}
			customCheck = &types.CheckOutput{
				ExitCode: res.ExitCode,
				Output:   truncate(strings.TrimSpace(res.Output), customCheckLimit),
			}
			return nil
		})
	}

	_ = g.Wait()

	d.ProcessStatus = processStatus
	d.PortStatus = portStatus
	d.LogTail = logTail
	d.LogStatus = logStatus
	d.CustomCheck = customCheck
	if len(unavailable) > 0 {
		d.Unavailable = unavailable
	}
	d.CapturedAt = time.Now()
	return d
}

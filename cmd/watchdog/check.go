package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every service once and print the result",
	Long: `Probe every configured service once, in parallel, without restarting
anything. Exits 1 when any service is unhealthy.

Example:
  watchdog check`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		specs, err := cfg.ServiceSpecs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		results := probeAll(cmd.Context(), newBackend(cfg), specs)
		if !printCheckTable(os.Stdout, specs, results) {
			os.Exit(1)
		}
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <service>",
	Short: "Collect a diagnostics snapshot for one service as JSON",
	Long: `Collect the same diagnostics snapshot the agent receives on escalation:
process status, port status, the log tail, and the custom health check output.

Example:
  watchdog diagnose api`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		specs, err := cfg.ServiceSpecs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		spec, ok := findSpec(specs, args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown service %q\n", args[0])
			os.Exit(1)
		}

		diag := newBackend(cfg).Collect(cmd.Context(), spec)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(diag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to encode diagnostics: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diagnoseCmd)
}

// probeAll probes every spec concurrently; results line up with specs
func probeAll(ctx context.Context, be backend.Backend, specs []types.ServiceSpec) []types.HealthResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]types.HealthResult, len(specs))
	var wg sync.WaitGroup
	for i := range specs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = be.Probe(ctx, &specs[i])
		}(i)
	}
	wg.Wait()
	return results
}

// printCheckTable writes one row per service and reports whether all are healthy
func printCheckTable(out io.Writer, specs []types.ServiceSpec, results []types.HealthResult) bool {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tBACKEND\tSTATUS\tDETAIL")
	allHealthy := true
	for i, spec := range specs {
		status := green("healthy")
		if !results[i].Healthy {
			status = red("unhealthy")
			allHealthy = false
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", spec.Name, backendLabel(&spec), status, results[i].Detail)
	}
	_ = w.Flush()
	return allHealthy
}

func findSpec(specs []types.ServiceSpec, name string) (*types.ServiceSpec, bool) {
	for i := range specs {
		if specs[i].Name == name {
			return &specs[i], true
		}
	}
	return nil, false
}

func backendLabel(spec *types.ServiceSpec) string {
	if spec.Backend == types.BackendSupervisor {
		return fmt.Sprintf("%s %s", spec.Supervisor, spec.Label)
	}
	return string(spec.Backend)
}

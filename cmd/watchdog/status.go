package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f1re/watchdog/internal/control"
	"github.com/f1re/watchdog/internal/types"
)

var (
	statusService     string
	statusTransitions int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live state of a running watchdog",
	Long: `Ask the running watchdog, over its control socket, for the current phase of
every service and its most recent phase transitions.

Examples:
  watchdog status
  watchdog status --service api --transitions 20`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		if cfg.ControlSocket == "" {
			fmt.Fprintf(os.Stderr, "Error: control socket is disabled (control_socket is empty)\n")
			os.Exit(1)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		client := control.NewClient(cfg.ControlSocket)
		resp, err := client.Status(ctx, statusService)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printStatus(os.Stdout, resp)

		if statusTransitions > 0 {
			tresp, err := client.Transitions(ctx, statusService, statusTransitions)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println()
			printTransitions(os.Stdout, tresp.Transitions)
		}
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusService, "service", "s", "", "only this service")
	statusCmd.Flags().IntVarP(&statusTransitions, "transitions", "t", 10, "recent transitions to show (0 to hide)")
	rootCmd.AddCommand(statusCmd)
}

// handleControl answers control socket commands from live controller state
func (d *daemon) handleControl(_ context.Context, cmd control.Command) (*control.Response, error) {
	switch cmd.Type {
	case control.CommandStatus:
		resp := &control.Response{StartedAt: d.startedAt}
		for _, c := range d.controllers {
			if cmd.Service != "" && c.Name() != cmd.Service {
				continue
			}
			resp.Services = append(resp.Services, control.ServiceStatus{
				Name:    c.Name(),
				Backend: backendLabel(c.Spec()),
				State:   c.State(),
			})
		}
		if cmd.Service != "" && len(resp.Services) == 0 {
			return nil, fmt.Errorf("unknown service %q", cmd.Service)
		}
		return resp, nil

	case control.CommandTransitions:
		limit := cmd.Limit
		if limit <= 0 {
			limit = 20
		}
		transitions := d.monitor.Recent(limit)
		if cmd.Service != "" {
			transitions = d.monitor.ForService(cmd.Service)
		}
		if len(transitions) > limit {
			transitions = transitions[len(transitions)-limit:]
		}
		resp := &control.Response{}
		for _, t := range transitions {
			resp.Transitions = append(resp.Transitions, control.TransitionInfo{
				Service:      t.Service,
				EpisodeID:    t.EpisodeID,
				From:         t.From,
				To:           t.To,
				FailureCount: t.FailureCount,
				Reason:       t.Reason,
				Timestamp:    t.Timestamp,
			})
		}
		return resp, nil

	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func printStatus(out io.Writer, resp *control.Response) {
	if !resp.StartedAt.IsZero() {
		fmt.Fprintf(out, "Watchdog up %s\n\n", time.Since(resp.StartedAt).Round(time.Second))
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tBACKEND\tPHASE\tLAST CHECK\tLAST HEALTHY\tEPISODE")
	for _, s := range resp.Services {
		episode := "-"
		if s.State.EpisodeID != "" {
			episode = s.State.EpisodeID[:min(8, len(s.State.EpisodeID))]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name,
			s.Backend,
			phaseColor(s.State.Phase)(s.State.String()),
			formatAge(s.State.LastCheck),
			formatAge(s.State.LastHealthy),
			episode,
		)
	}
	_ = w.Flush()
}

func printTransitions(out io.Writer, transitions []control.TransitionInfo) {
	if len(transitions) == 0 {
		fmt.Fprintln(out, "No transitions yet")
		return
	}
	for _, t := range transitions {
		fmt.Fprintf(out, "%s  %-12s  %s -> %s  %s\n",
			t.Timestamp.Local().Format("15:04:05"),
			t.Service,
			t.From,
			phaseColor(t.To)(string(t.To)),
			t.Reason,
		)
	}
}

func phaseColor(p types.Phase) func(a ...interface{}) string {
	switch p {
	case types.PhaseHealthy:
		return color.New(color.FgGreen).SprintFunc()
	case types.PhaseFailed:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.PhaseEscalating, types.PhaseRecovering:
		return color.New(color.FgMagenta).SprintFunc()
	default:
		return color.New(color.FgYellow).SprintFunc()
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

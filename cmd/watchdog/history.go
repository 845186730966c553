package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f1re/watchdog/internal/config"
	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/storage"
	"github.com/f1re/watchdog/internal/types"
)

var (
	historyService string
	historyLimit   int
	historyOpen    bool

	eventsService  string
	eventsEpisode  string
	eventsType     string
	eventsSeverity string
	eventsSince    time.Duration
	eventsLimit    int

	pruneVacuum bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded failure episodes",
	Long: `Show failure episodes from the history database, newest first.

Examples:
  watchdog history
  watchdog history --service api --limit 5
  watchdog history --open`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		store := mustOpenHistory(cmd.Context(), cfg)
		defer store.Close()

		episodes, err := store.ListEpisodes(cmd.Context(), types.EpisodeFilter{
			Service:  historyService,
			OpenOnly: historyOpen,
			Limit:    historyLimit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list episodes: %v\n", err)
			os.Exit(1)
		}
		if len(episodes) == 0 {
			fmt.Println("No episodes recorded")
			return
		}
		printEpisodes(os.Stdout, episodes)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded watchdog events",
	Long: `Show the event log: phase transitions, restarts, escalations and
notifications, newest first.

Examples:
  watchdog events --service api
  watchdog events --episode 3f2b...
  watchdog events --type restart_attempted --since 24h`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		store := mustOpenHistory(cmd.Context(), cfg)
		defer store.Close()

		filter := events.EventFilter{
			Service:   eventsService,
			EpisodeID: eventsEpisode,
			Type:      events.EventType(eventsType),
			Severity:  events.EventSeverity(eventsSeverity),
			Limit:     eventsLimit,
		}
		if eventsSince > 0 {
			filter.AfterTime = time.Now().Add(-eventsSince)
		}

		evts, err := store.GetEvents(cmd.Context(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read events: %v\n", err)
			os.Exit(1)
		}
		if len(evts) == 0 {
			fmt.Println("No events recorded")
			return
		}
		for _, e := range evts {
			fmt.Println(formatEvent(e))
		}
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history older than the retention period",
	Long: `Delete closed episodes and events older than history.retention_days.
The running watchdog does this daily; use this to run it by hand.

Examples:
  watchdog history prune
  watchdog history prune --vacuum`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		store := mustOpenHistory(cmd.Context(), cfg)
		defer store.Close()

		res, err := storage.NewCleaner(store, cfg.History.Retention(), 0).RunOnce(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d episode(s) and %d event(s) older than %d days\n",
			green("✓"), res.Episodes, res.Events, cfg.History.RetentionDays)

		if pruneVacuum {
			if err := store.Vacuum(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: vacuum failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Reclaimed free space\n", green("✓"))
		}
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyService, "service", "s", "", "only this service")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum episodes to show")
	historyCmd.Flags().BoolVar(&historyOpen, "open", false, "only episodes that have not ended")

	eventsCmd.Flags().StringVarP(&eventsService, "service", "s", "", "only this service")
	eventsCmd.Flags().StringVar(&eventsEpisode, "episode", "", "only this episode")
	eventsCmd.Flags().StringVarP(&eventsType, "type", "t", "", "only this event type")
	eventsCmd.Flags().StringVar(&eventsSeverity, "severity", "", "only this severity (info, warning, error, critical)")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "only events newer than this (e.g. 24h)")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "maximum events to show")

	pruneCmd.Flags().BoolVar(&pruneVacuum, "vacuum", false, "reclaim disk space after pruning")

	historyCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(eventsCmd)
}

func mustOpenHistory(ctx context.Context, cfg *config.Config) storage.Storage {
	if !cfg.History.Enabled() {
		fmt.Fprintf(os.Stderr, "Error: history is disabled (history.path is empty)\n")
		os.Exit(1)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.History.Path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open history: %v\n", err)
		os.Exit(1)
	}
	return store
}

func printEpisodes(out io.Writer, episodes []*types.Episode) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTARTED\tDURATION\tRESTARTS\tESCALATED\tRESULT\tROOT CAUSE")
	for _, ep := range episodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			ep.Service,
			ep.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatEpisodeDuration(ep),
			ep.Restarts,
			yesNo(ep.Escalated),
			episodeResult(ep),
			truncateText(ep.RootCause, 60),
		)
	}
	_ = w.Flush()
}

func formatEpisodeDuration(ep *types.Episode) string {
	d := ep.Duration().Round(time.Second)
	if ep.Open() {
		return d.String() + "+"
	}
	return d.String()
}

// episodeResult colors the final phase; an open episode shows where it is now
func episodeResult(ep *types.Episode) string {
	result := string(ep.FinalPhase)
	if ep.Outcome != "" {
		result += " (" + string(ep.Outcome) + ")"
	}
	switch {
	case ep.Open():
		return color.YellowString("open: " + result)
	case ep.FinalPhase == types.PhaseHealthy:
		return color.GreenString(result)
	default:
		return color.RedString(result)
	}
}

func formatEvent(e *events.Event) string {
	severity := string(e.Severity)
	switch e.Severity {
	case events.SeverityCritical, events.SeverityError:
		severity = color.RedString(severity)
	case events.SeverityWarning:
		severity = color.YellowString(severity)
	default:
		severity = color.New(color.FgHiBlack).Sprint(severity)
	}
	return fmt.Sprintf("%s  %-8s  %-12s  %-20s  %s",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		severity,
		e.Service,
		e.Type,
		e.Message,
	)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncateText(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

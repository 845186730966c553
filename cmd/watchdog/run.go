package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/f1re/watchdog/internal/agent"
	"github.com/f1re/watchdog/internal/backend"
	"github.com/f1re/watchdog/internal/config"
	"github.com/f1re/watchdog/internal/control"
	"github.com/f1re/watchdog/internal/logging"
	"github.com/f1re/watchdog/internal/metrics"
	"github.com/f1re/watchdog/internal/notify"
	"github.com/f1re/watchdog/internal/storage"
	"github.com/f1re/watchdog/internal/watchdog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor every configured service until interrupted",
	Long: `Start one control loop per configured service and keep them running until
SIGINT or SIGTERM. In-flight escalations get shutdown_grace to finish.

Examples:
  watchdog run
  watchdog run --config /etc/watchdog/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		defer func() { _ = logging.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d, err := newDaemon(ctx, cfg, newBackend(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer d.Close()

		if err := d.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// daemon is everything "watchdog run" wires together
type daemon struct {
	cfg         *config.Config
	scheduler   *watchdog.Scheduler
	controllers []*watchdog.Controller
	monitor     *watchdog.Monitor
	notifier    *notify.Multi
	store       storage.Storage
	agentName   string
	startedAt   time.Time
}

func newDaemon(ctx context.Context, cfg *config.Config, be backend.Backend) (*daemon, error) {
	specs, err := cfg.ServiceSpecs()
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, config.ErrNoServices
	}

	ag, err := agent.New(cfg.Agent)
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:       cfg,
		monitor:   watchdog.NewMonitor(0),
		notifier:  notifier,
		agentName: ag.Name(),
		startedAt: time.Now(),
	}
	d.scheduler = watchdog.NewScheduler(watchdog.SchedulerConfig{
		Interval:      cfg.CheckInterval.Std(),
		ShutdownGrace: cfg.ShutdownGrace.Std(),
	})

	var recorder watchdog.Recorder
	if cfg.History.Enabled() {
		store, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.History.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		d.store = store
		recorder = store
		if cfg.History.CleanupEnabled {
			d.scheduler.AddService(storage.NewCleaner(store, cfg.History.Retention(), cfg.History.CleanupInterval.Std()))
		}
	}

	if cfg.MetricsAddr != "" {
		d.scheduler.AddService(metrics.NewServer(cfg.MetricsAddr, 5*time.Second))
	}

	if cfg.ControlSocket != "" {
		srv, err := control.NewServer(cfg.ControlSocket, d.handleControl)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.scheduler.AddService(srv)
	}

	for i := range specs {
		c, err := watchdog.NewController(watchdog.ControllerConfig{
			Spec:              &specs[i],
			Backend:           be,
			Agent:             ag,
			Notifier:          notifier,
			Recorder:          recorder,
			Monitor:           d.monitor,
			MaxSimpleRestarts: cfg.MaxSimpleRestarts,
			SettleDelay:       cfg.SettleDelay.Std(),
			AgentTimeout:      cfg.AgentTimeout.Std(),
			NotifyTimeout:     cfg.NotifyTimeout.Std(),
			FailedCooldown:    cfg.FailedCooldown.Std(),
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("service %s: %w", specs[i].Name, err)
		}
		d.controllers = append(d.controllers, c)
		d.scheduler.AddController(c)
	}
	return d, nil
}

// buildNotifier always includes the console; Telegram is added when credentials are set
func buildNotifier(cfg *config.Config) (*notify.Multi, error) {
	notifiers := []notify.Notifier{notify.NewConsole(os.Stderr)}
	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			APIURL:   cfg.Telegram.APIURL,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	} else {
		logging.Warn().Msg("Telegram not configured, reports go to the console only")
	}
	return notify.NewMulti(notifiers...), nil
}

// Run announces startup and blocks until ctx is cancelled
func (d *daemon) Run(ctx context.Context) error {
	names := make([]string, 0, len(d.controllers))
	for _, c := range d.controllers {
		names = append(names, c.Name())
	}

	actx, cancel := context.WithTimeout(ctx, d.cfg.NotifyTimeout.Std())
	err := d.notifier.Announce(actx, notify.Startup{
		Services:    names,
		Interval:    d.cfg.CheckInterval.Std(),
		MaxRestarts: d.cfg.MaxSimpleRestarts,
		Agent:       d.agentName,
	})
	cancel()
	if err != nil {
		logging.Warn().Err(err).Msg("Startup announcement failed")
	}

	logging.Info().
		Strs("services", names).
		Str("agent", d.agentName).
		Bool("history", d.store != nil).
		Msg("Watchdog running")

	if err := d.scheduler.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Watchdog stopped")
	return nil
}

func (d *daemon) Close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close history database")
		}
		d.store = nil
	}
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/logging"
	"github.com/f1re/watchdog/internal/storage/sqlite"
)

// Pruner is the subset of Storage the cleaner needs
type Pruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (*sqlite.PruneResult, error)
	StoreEvent(ctx context.Context, event *events.Event) error
}

// Cleaner prunes history older than the retention period, once at start and
// then every interval. It runs as a supervised service.
type Cleaner struct {
	store     Pruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewCleaner creates a retention cleaner
func NewCleaner(store Pruner, retention, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Cleaner{store: store, retention: retention, interval: interval, now: time.Now}
}

// Serve implements suture.Service
func (c *Cleaner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunOnce(ctx); err != nil {
			log := logging.Component("history")
			log.Warn().Err(err).Msg("History cleanup failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce prunes everything older than now minus the retention period
func (c *Cleaner) RunOnce(ctx context.Context) (*sqlite.PruneResult, error) {
	cutoff := c.now().Add(-c.retention)
	res, err := c.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to prune history: %w", err)
	}

	if res.Episodes > 0 || res.Events > 0 {
		log := logging.Component("history")
		log.Info().
			Int("episodes", res.Episodes).
			Int("events", res.Events).
			Time("cutoff", cutoff).
			Msg("Pruned history")
		e := events.New(events.EventTypeHistoryCleanup, "watchdog", "", "", events.SeverityInfo,
			fmt.Sprintf("pruned %d episodes and %d events older than %s", res.Episodes, res.Events, cutoff.Format(time.RFC3339)))
		_ = events.SetData(e, res)
		if err := c.store.StoreEvent(ctx, e); err != nil {
			return res, fmt.Errorf("failed to record cleanup: %w", err)
		}
	}
	return res, nil
}

func (c *Cleaner) String() string {
	return "history-cleaner"
}

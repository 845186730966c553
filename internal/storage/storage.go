// Package storage persists failure episodes and watchdog events so operators
// can review what happened after the fact.
package storage

import (
	"context"
	"time"

	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/storage/sqlite"
	"github.com/f1re/watchdog/internal/types"
)

// Storage defines the interface for history backends
type Storage interface {
	// Episodes
	UpsertEpisode(ctx context.Context, episode *types.Episode) error
	GetEpisode(ctx context.Context, id string) (*types.Episode, error)
	ListEpisodes(ctx context.Context, filter types.EpisodeFilter) ([]*types.Episode, error)

	// Events
	StoreEvent(ctx context.Context, event *events.Event) error
	GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.Event, error)

	// Retention
	PruneOlderThan(ctx context.Context, cutoff time.Time) (*sqlite.PruneResult, error)
	Vacuum(ctx context.Context) error

	Close() error
}

// Config holds storage configuration
type Config struct {
	Path string
}

// NewStorage opens the SQLite history database at cfg.Path
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	return sqlite.New(ctx, cfg.Path)
}

// Ensure the SQLite backend satisfies the interface
var _ Storage = (*sqlite.SQLiteStorage)(nil)

package sqlite

import (
	"context"
	"fmt"
	"time"
)

// PruneResult reports how many rows a retention pass removed
type PruneResult struct {
	Episodes int
	Events   int
}

// PruneOlderThan deletes events timestamped before cutoff and closed episodes
// that ended before cutoff. Open episodes are never pruned.
func (s *SQLiteStorage) PruneOlderThan(ctx context.Context, cutoff time.Time) (*PruneResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	c := formatTime(cutoff)
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, c)
	if err != nil {
		return nil, fmt.Errorf("failed to prune events: %w", err)
	}
	evCount, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to count pruned events: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM episodes WHERE ended_at IS NOT NULL AND ended_at < ?`, c)
	if err != nil {
		return nil, fmt.Errorf("failed to prune episodes: %w", err)
	}
	epCount, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to count pruned episodes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit prune: %w", err)
	}
	return &PruneResult{Episodes: int(epCount), Events: int(evCount)}, nil
}

// Vacuum reclaims space after large deletions
func (s *SQLiteStorage) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

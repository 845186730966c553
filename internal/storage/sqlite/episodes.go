package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/f1re/watchdog/internal/types"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

const episodeColumns = `id, service, started_at, ended_at, restarts, escalated,
		       outcome, root_cause, actions, final_phase, notified`

// UpsertEpisode inserts the episode or updates the stored copy with the same ID
func (s *SQLiteStorage) UpsertEpisode(ctx context.Context, ep *types.Episode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("invalid episode: %w", err)
	}

	actions := ep.Actions
	if actions == nil {
		actions = []string{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to marshal episode actions: %w", err)
	}

	var endedAt sql.NullString
	if ep.EndedAt != nil {
		endedAt = sql.NullString{String: formatTime(*ep.EndedAt), Valid: true}
	}

	query := `
		INSERT INTO episodes (` + episodeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			restarts = excluded.restarts,
			escalated = excluded.escalated,
			outcome = excluded.outcome,
			root_cause = excluded.root_cause,
			actions = excluded.actions,
			final_phase = excluded.final_phase,
			notified = excluded.notified
	`
	_, err = s.db.ExecContext(ctx, query,
		ep.ID,
		ep.Service,
		formatTime(ep.StartedAt),
		endedAt,
		ep.Restarts,
		boolInt(ep.Escalated),
		string(ep.Outcome),
		ep.RootCause,
		string(actionsJSON),
		string(ep.FinalPhase),
		boolInt(ep.Notified),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert episode %s (service=%s): %w", ep.ID, ep.Service, err)
	}
	return nil
}

// GetEpisode retrieves a single episode by ID
func (s *SQLiteStorage) GetEpisode(ctx context.Context, id string) (*types.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query episode: %w", err)
	}
	defer rows.Close()

	episodes, err := scanEpisodes(rows)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return nil, fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	return episodes[0], nil
}

// ListEpisodes returns episodes matching the filter, most recent first
func (s *SQLiteStorage) ListEpisodes(ctx context.Context, filter types.EpisodeFilter) ([]*types.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE 1=1`
	args := []interface{}{}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}
	if filter.OpenOnly {
		query += " AND ended_at IS NULL"
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	return scanEpisodes(rows)
}

func scanEpisodes(rows *sql.Rows) ([]*types.Episode, error) {
	var result []*types.Episode

	for rows.Next() {
		var (
			ep                  types.Episode
			startedAt           string
			endedAt             sql.NullString
			escalated, notified int
			outcome, phase      string
			actionsJSON         string
		)
		if err := rows.Scan(&ep.ID, &ep.Service, &startedAt, &endedAt, &ep.Restarts,
			&escalated, &outcome, &ep.RootCause, &actionsJSON, &phase, &notified); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}

		t, err := parseTime(startedAt)
		if err != nil {
			return nil, err
		}
		ep.StartedAt = t
		if endedAt.Valid {
			end, err := parseTime(endedAt.String)
			if err != nil {
				return nil, err
			}
			ep.EndedAt = &end
		}
		if err := json.Unmarshal([]byte(actionsJSON), &ep.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal episode actions: %w", err)
		}
		ep.Escalated = escalated != 0
		ep.Notified = notified != 0
		ep.Outcome = types.Outcome(outcome)
		ep.FinalPhase = types.Phase(phase)

		result = append(result, &ep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episodes: %w", err)
	}
	return result, nil
}

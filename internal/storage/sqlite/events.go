package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/f1re/watchdog/internal/events"
	"github.com/f1re/watchdog/internal/types"
)

// StoreEvent stores a new watchdog event
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.Event) error {
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO events (
			id, type, timestamp, service, episode_id, phase,
			severity, message, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		formatTime(event.Timestamp),
		event.Service,
		event.EpisodeID,
		string(event.Phase),
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, service=%s): %w", event.Type, event.Service, err)
	}
	return nil
}

// GetEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.Event, error) {
	query := `
		SELECT id, type, timestamp, service, episode_id, phase,
		       severity, message, data
		FROM events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Service != "" {
		query += " AND service = ?"
		args = append(args, filter.Service)
	}
	if filter.EpisodeID != "" {
		query += " AND episode_id = ?"
		args = append(args, filter.EpisodeID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, formatTime(filter.AfterTime))
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*events.Event, error) {
	var result []*events.Event

	for rows.Next() {
		var (
			event                          events.Event
			eventType, ts, phase, severity string
			dataJSON                       string
		)
		if err := rows.Scan(&event.ID, &eventType, &ts, &event.Service, &event.EpisodeID,
			&phase, &severity, &event.Message, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		event.Timestamp = t
		event.Type = events.EventType(eventType)
		event.Phase = types.Phase(phase)
		event.Severity = events.EventSeverity(severity)

		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return result, nil
}

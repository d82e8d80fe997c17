package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/google/uuid"
)

// defaultActivityLimit acota el feed cuando el caller no pide límite.
const defaultActivityLimit = 50

// RecordActivity guarda un evento en el feed de actividad.
func (s *SQLStorage) RecordActivity(ctx context.Context, e domain.Event) error {
	data := []byte("{}")
	if len(e.Data) > 0 {
		var err error
		if data, err = json.Marshal(e.Data); err != nil {
			return fmt.Errorf("storage.RecordActivity: marshal data: %w", err)
		}
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO activity_log (id, pool_id, season_id, participant_id, event_type, data, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), e.PoolID, e.SeasonID, e.ParticipantID, string(e.Type), string(data), formatTime(occurred),
	)
	if err != nil {
		return fmt.Errorf("storage.RecordActivity: %w", err)
	}
	return nil
}

// ListActivity devuelve los eventos más recientes de un pool.
func (s *SQLStorage) ListActivity(ctx context.Context, poolID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT pool_id, season_id, participant_id, event_type, data, occurred_at
		FROM activity_log
		WHERE pool_id = ?
		ORDER BY occurred_at DESC
		LIMIT ?`), poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListActivity: query: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e               domain.Event
			eventType, data string
			occurredAt      string
		)
		if err := rows.Scan(&e.PoolID, &e.SeasonID, &e.ParticipantID, &eventType, &data, &occurredAt); err != nil {
			return nil, fmt.Errorf("storage.ListActivity: scan: %w", err)
		}
		e.Type = domain.EventType(eventType)
		e.OccurredAt = parseTime(occurredAt)
		if data != "" && data != "{}" {
			if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
				return nil, fmt.Errorf("storage.ListActivity: unmarshal data: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

package domain

import "time"

// EventType identifica un evento de actividad del pool.
type EventType string

const (
	EventPoolCreated       EventType = "pool.created"
	EventPoolDeleted       EventType = "pool.deleted"
	EventSubmissionCreated EventType = "submission.created"
	EventVoteCast          EventType = "vote.cast"
	EventVoteRetracted     EventType = "vote.retracted"
	EventPhaseChanged      EventType = "pool.phase_changed"
	EventPoolSettled       EventType = "pool.settled"
)

// Event es un hecho ya confirmado en la DB. Se publica después del commit;
// si la entrega falla no se deshace nada.
type Event struct {
	Type          EventType
	PoolID        string
	SeasonID      string
	ParticipantID string
	OccurredAt    time.Time
	Data          map[string]any
}

// NewEvent crea un evento con timestamp UTC.
func NewEvent(t EventType, pool Pool, participantID string, data map[string]any) Event {
	return Event{
		Type:          t,
		PoolID:        pool.ID,
		SeasonID:      pool.SeasonID,
		ParticipantID: participantID,
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}
}

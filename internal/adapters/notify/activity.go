package notify

import (
	"context"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
)

// Activity persiste cada evento en el feed de actividad.
type Activity struct {
	log ports.ActivityLog
}

// NewActivity crea un sink sobre el activity log.
func NewActivity(log ports.ActivityLog) *Activity {
	return &Activity{log: log}
}

// Publish guarda el evento.
func (a *Activity) Publish(ctx context.Context, e domain.Event) error {
	return a.log.RecordActivity(ctx, e)
}

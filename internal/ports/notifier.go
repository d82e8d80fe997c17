package ports

import (
	"context"

	"github.com/alejandrodnm/accapool/internal/domain"
)

// Notifier entrega los eventos de actividad del pool (log, consola, webhook...).
// La entrega es fire-and-forget: un error aquí nunca deshace la operación que
// produjo el evento.
type Notifier interface {
	Publish(ctx context.Context, event domain.Event) error
}

// ActivityLog persiste eventos de actividad para el feed de la liga.
type ActivityLog interface {
	RecordActivity(ctx context.Context, event domain.Event) error
	ListActivity(ctx context.Context, poolID string, limit int) ([]domain.Event, error)
}

package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config contiene los valores por defecto de los pools nuevos.
type Config struct {
	DefaultBuyin       decimal.Decimal
	DefaultLegs        int
	DefaultWinningLegs int
	SubmissionWindow   time.Duration // desde la creación
	VotingWindow       time.Duration // desde el cierre de envíos
}

// DefaultConfig devuelve los valores por defecto de un pool (buy-in 2, 3 legs, acca de 5).
func DefaultConfig() Config {
	return Config{
		DefaultBuyin:       decimal.NewFromInt(2),
		DefaultLegs:        3,
		DefaultWinningLegs: 5,
		SubmissionWindow:   24 * time.Hour,
		VotingWindow:       12 * time.Hour,
	}
}

// Service es el motor del pool: envíos, votos y transiciones de fase.
// Todas las mutaciones corren en una única transacción del PoolStore y los
// eventos se publican después del commit.
type Service struct {
	cfg      Config
	store    ports.PoolStore
	notifier ports.Notifier
	metrics  ports.Metrics
	now      func() time.Time
}

// Option configura un Service.
type Option func(*Service)

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics registra las mediciones del motor.
func WithMetrics(m ports.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New crea un Service. notifier puede ser nil.
func New(cfg Config, store ports.PoolStore, notifier ports.Notifier, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		metrics:  ports.NopMetrics{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePool crea un pool en fase de recogida. Los campos a cero toman los valores por defecto.
func (s *Service) CreatePool(ctx context.Context, spec domain.PoolSpec) (p domain.Pool, err error) {
	defer s.observe("create_pool", time.Now(), &err)

	now := s.now()
	if spec.BuyinPerParticipant.IsZero() {
		spec.BuyinPerParticipant = s.cfg.DefaultBuyin
	}
	if spec.LegsPerParticipant == 0 {
		spec.LegsPerParticipant = s.cfg.DefaultLegs
	}
	if spec.WinningLegsCount == 0 {
		spec.WinningLegsCount = s.cfg.DefaultWinningLegs
	}
	if spec.SubmissionDeadline.IsZero() {
		spec.SubmissionDeadline = now.Add(s.cfg.SubmissionWindow)
	}
	if spec.VotingDeadline.IsZero() {
		spec.VotingDeadline = spec.SubmissionDeadline.Add(s.cfg.VotingWindow)
	}
	if err := spec.Validate(); err != nil {
		return domain.Pool{}, fmt.Errorf("pool.CreatePool: %w", err)
	}

	p = domain.Pool{
		ID:                  uuid.NewString(),
		SeasonID:            spec.SeasonID,
		Title:               spec.Title,
		BuyinPerParticipant: spec.BuyinPerParticipant,
		LegsPerParticipant:  spec.LegsPerParticipant,
		WinningLegsCount:    spec.WinningLegsCount,
		SubmissionDeadline:  spec.SubmissionDeadline,
		VotingDeadline:      spec.VotingDeadline,
		Phase:               domain.PhaseCollecting,
		Outcome:             domain.OutcomeUnresolved,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.CreatePool(ctx, p); err != nil {
		return domain.Pool{}, fmt.Errorf("pool.CreatePool: %w", err)
	}

	slog.Info("pool created", "pool_id", p.ID, "season_id", p.SeasonID, "title", p.Title)
	s.publish(ctx, domain.NewEvent(domain.EventPoolCreated, p, "", map[string]any{
		"title":        p.Title,
		"buyin":        p.BuyinPerParticipant.String(),
		"winning_legs": p.WinningLegsCount,
	}))
	return p, nil
}

// GetPool devuelve un pool.
func (s *Service) GetPool(ctx context.Context, poolID string) (domain.Pool, error) {
	p, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool.GetPool: %w", err)
	}
	return p, nil
}

// ListPools devuelve los pools de una temporada ("" = todas).
func (s *Service) ListPools(ctx context.Context, seasonID string) ([]domain.Pool, error) {
	pools, err := s.store.ListPools(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("pool.ListPools: %w", err)
	}
	return pools, nil
}

// DeletePool borra un pool con sus submissions y votos.
func (s *Service) DeletePool(ctx context.Context, poolID string) (err error) {
	defer s.observe("delete_pool", time.Now(), &err)

	p, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return fmt.Errorf("pool.DeletePool: %w", err)
	}
	if err := s.store.DeletePool(ctx, poolID); err != nil {
		return fmt.Errorf("pool.DeletePool: %w", err)
	}

	slog.Info("pool deleted", "pool_id", poolID)
	s.publish(ctx, domain.NewEvent(domain.EventPoolDeleted, p, "", nil))
	return nil
}

// GetBoard arma la vista del pool para un participante.
func (s *Service) GetBoard(ctx context.Context, poolID, participantID string) (domain.Board, error) {
	p, err := s.store.GetPool(ctx, poolID)
	if err != nil {
		return domain.Board{}, fmt.Errorf("pool.GetBoard: %w", err)
	}
	subs, err := s.store.ListSubmissions(ctx, poolID)
	if err != nil {
		return domain.Board{}, fmt.Errorf("pool.GetBoard: %w", err)
	}

	var voted map[string]bool
	if participantID != "" {
		if voted, err = s.store.VotedSubmissions(ctx, poolID, participantID); err != nil {
			return domain.Board{}, fmt.Errorf("pool.GetBoard: %w", err)
		}
	}
	return domain.NewBoard(p, subs, voted, participantID, s.now()), nil
}

// observe registra la operación y escala las violaciones de invariante.
func (s *Service) observe(op string, start time.Time, errp *error) {
	err := *errp
	s.metrics.ObserveOperation(op, err, time.Since(start))
	if errors.Is(err, domain.ErrInvariantViolation) {
		slog.Error("invariant violation", "op", op, "err", err)
	}
}

// publish entrega eventos ya confirmados. Un fallo se loguea y no afecta al caller.
func (s *Service) publish(ctx context.Context, events ...domain.Event) {
	if s.notifier == nil {
		return
	}
	for _, e := range events {
		if err := s.notifier.Publish(ctx, e); err != nil {
			slog.Warn("publish event failed", "type", e.Type, "pool_id", e.PoolID, "err", err)
		}
	}
}

package ports

import (
	"context"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/shopspring/decimal"
)

// LockMode indica cómo se lee la fila del pool dentro de una transacción.
type LockMode int

const (
	// LockNone: lectura simple.
	LockNone LockMode = iota
	// LockShared: votos. Impide que una transición avance en paralelo. No usar si
	// la tx va a escribir la fila del pool.
	LockShared
	// LockExclusive: transiciones de fase y envíos (que reservan seq en el pool).
	LockExclusive
)

// PoolStore persiste pools, submissions y votos.
// Las operaciones que mutan estado se ejecutan dentro de WithinTx.
type PoolStore interface {
	// WithinTx ejecuta fn en una transacción. Si fn devuelve error se hace rollback.
	WithinTx(ctx context.Context, fn func(tx PoolTx) error) error

	CreatePool(ctx context.Context, pool domain.Pool) error
	GetPool(ctx context.Context, poolID string) (domain.Pool, error)
	ListPools(ctx context.Context, seasonID string) ([]domain.Pool, error)
	DeletePool(ctx context.Context, poolID string) error

	// ListSubmissions devuelve las submissions ordenadas por votos desc, llegada asc.
	ListSubmissions(ctx context.Context, poolID string) ([]domain.Submission, error)
	// VotedSubmissions devuelve los IDs de submission que participantID votó en el pool.
	VotedSubmissions(ctx context.Context, poolID, participantID string) (map[string]bool, error)

	Close() error
}

// PoolTx es la unidad de trabajo explícita que reciben las operaciones del motor.
type PoolTx interface {
	GetPool(ctx context.Context, poolID string, lock LockMode) (domain.Pool, error)
	ListSubmissions(ctx context.Context, poolID string) ([]domain.Submission, error)
	GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error)
	CountSubmissions(ctx context.Context, poolID string) (int, error)

	// ReplaceSubmissions borra todas las submissions del participante en el pool e
	// inserta las nuevas, asignándoles Seq consecutivos. Devuelve cuántas borró.
	ReplaceSubmissions(ctx context.Context, poolID, participantID string, subs []domain.Submission) (int, error)

	// InsertVote inserta el voto si no existe. false si ya existía.
	InsertVote(ctx context.Context, vote domain.Vote) (bool, error)
	// DeleteVote borra el voto. false si no existía.
	DeleteVote(ctx context.Context, submissionID, participantID string) (bool, error)
	// AdjustVoteCount aplica delta de forma atómica en la DB y devuelve el nuevo conteo.
	AdjustVoteCount(ctx context.Context, submissionID string, delta int) (int, error)

	// CompareAndSetPhase avanza la fase solo si la fase guardada sigue siendo from.
	// Devuelve domain.ErrPhaseViolation si otra transición ganó la carrera.
	CompareAndSetPhase(ctx context.Context, poolID string, from domain.Phase, update PhaseUpdate) error

	MarkWinningLegs(ctx context.Context, poolID string, submissionIDs []string) error
	SetWinningLegResults(ctx context.Context, poolID string, result domain.LegResult) error
}

// PhaseUpdate son los campos que cambian junto con la fase. nil = no tocar.
type PhaseUpdate struct {
	To                   domain.Phase
	Outcome              *domain.Outcome
	CombinedOdds         *float64
	TotalStake           *decimal.Decimal
	PayoutPerParticipant *decimal.Decimal
}

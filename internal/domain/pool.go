package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Phase es la fase del ciclo de vida de un pool.
type Phase string

const (
	PhaseCollecting Phase = "collecting_submissions"
	PhaseVoting     Phase = "voting"
	PhasePlaced     Phase = "placed"
	PhaseSettled    Phase = "settled"
)

// ParsePhase valida una fase leída de la DB o de la API.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhaseCollecting, PhaseVoting, PhasePlaced, PhaseSettled:
		return p, nil
	}
	return "", fmt.Errorf("domain.ParsePhase: unknown phase %q", s)
}

// Next devuelve la única fase a la que se puede avanzar desde p.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseCollecting:
		return PhaseVoting, true
	case PhaseVoting:
		return PhasePlaced, true
	case PhasePlaced:
		return PhaseSettled, true
	}
	return "", false
}

// Outcome es el resultado final de la acca del pool.
type Outcome string

const (
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeWon        Outcome = "won"
	OutcomeLost       Outcome = "lost"
)

// ParseOutcome valida un outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeUnresolved, OutcomeWon, OutcomeLost:
		return o, nil
	}
	return "", fmt.Errorf("domain.ParseOutcome: unknown outcome %q", s)
}

// LegResult es el resultado individual de un leg.
type LegResult string

const (
	LegPending LegResult = "pending"
	LegWon     LegResult = "won"
	LegLost    LegResult = "lost"
	LegVoid    LegResult = "void"
)

// ParseLegResult valida el resultado de un leg.
func ParseLegResult(s string) (LegResult, error) {
	switch r := LegResult(strings.ToLower(strings.TrimSpace(s))); r {
	case LegPending, LegWon, LegLost, LegVoid:
		return r, nil
	}
	return "", fmt.Errorf("domain.ParseLegResult: unknown leg result %q", s)
}

// Pool es un evento colaborativo de construcción de una acca compartida.
type Pool struct {
	ID                  string
	SeasonID            string
	Title               string
	BuyinPerParticipant decimal.Decimal
	LegsPerParticipant  int       // cupo exacto de legs por participante
	WinningLegsCount    int       // tamaño final de la acca
	SubmissionDeadline  time.Time // orientativo, no bloquea nada
	VotingDeadline      time.Time // orientativo, no bloquea nada
	Phase               Phase
	Outcome             Outcome

	// nil hasta Placed/Settled
	CombinedOdds         *float64
	TotalStake           *decimal.Decimal
	PayoutPerParticipant *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
	PlacedAt  *time.Time
	SettledAt *time.Time
}

// CheckInvariants verifica la coherencia entre fase, outcome y campos calculados.
func (p Pool) CheckInvariants() error {
	if p.Outcome != OutcomeUnresolved && p.Phase != PhaseSettled {
		return fmt.Errorf("%w: outcome %s in phase %s", ErrInvariantViolation, p.Outcome, p.Phase)
	}
	placedOrLater := p.Phase == PhasePlaced || p.Phase == PhaseSettled
	if !placedOrLater && (p.CombinedOdds != nil || p.PayoutPerParticipant != nil) {
		return fmt.Errorf("%w: settlement fields set in phase %s", ErrInvariantViolation, p.Phase)
	}
	return nil
}

// PoolSpec son los parámetros para crear un pool.
type PoolSpec struct {
	SeasonID            string
	Title               string
	BuyinPerParticipant decimal.Decimal
	LegsPerParticipant  int
	WinningLegsCount    int
	SubmissionDeadline  time.Time
	VotingDeadline      time.Time
}

// Validate comprueba los parámetros mínimos de un pool nuevo.
func (s PoolSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidPool)
	case s.BuyinPerParticipant.IsNegative():
		return fmt.Errorf("%w: buy-in must not be negative", ErrInvalidPool)
	case s.LegsPerParticipant < 1:
		return fmt.Errorf("%w: legs per participant must be >= 1", ErrInvalidPool)
	case s.WinningLegsCount < 1:
		return fmt.Errorf("%w: winning legs count must be >= 1", ErrInvalidPool)
	case !s.VotingDeadline.IsZero() && s.VotingDeadline.Before(s.SubmissionDeadline):
		return fmt.Errorf("%w: voting deadline before submission deadline", ErrInvalidPool)
	}
	return nil
}

// Submission es un leg propuesto por un participante.
type Submission struct {
	ID             string
	PoolID         string
	ParticipantID  string
	LegIndex       int   // posición dentro del envío del participante
	Seq            int64 // orden de llegada dentro del pool (desempate)
	SelectionText  string
	EventLabel     string
	OddsDecimal    float64
	OddsFractional string
	VoteCount      int
	IsWinningLeg   bool
	Result         LegResult
	CreatedAt      time.Time
}

// LegInput es un leg tal como llega del participante (o del feed de cuotas).
type LegInput struct {
	SelectionText  string
	EventLabel     string
	OddsFractional string
}

// Complete indica si el leg tiene selección y cuota.
func (l LegInput) Complete() bool {
	return strings.TrimSpace(l.SelectionText) != "" && strings.TrimSpace(l.OddsFractional) != ""
}

// Vote es el apoyo de un participante a una submission. Identidad (SubmissionID, ParticipantID).
type Vote struct {
	SubmissionID  string
	ParticipantID string
	PoolID        string
	CreatedAt     time.Time
}

// VoteState es el estado tras un toggle.
type VoteState struct {
	SubmissionID string
	Voted        bool // true si el participante quedó votando esta submission
	VoteCount    int
}

// SubmitResult es el resultado de un envío completo de legs.
type SubmitResult struct {
	PoolID        string
	ParticipantID string
	Submissions   []Submission
	Replaced      int // submissions previas eliminadas
}

// Board es la vista de lectura de un pool para un participante.
type Board struct {
	Pool               Pool
	Submissions        []Submission // ordenadas por votos desc, llegada asc
	WinningLegs        []Submission
	MySubmissions      []Submission
	MyVotes            map[string]bool
	ParticipantCount   int
	DisplayOdds        float64 // Combine de los legs ganadores (1.0 si no hay)
	SubmissionsOverdue bool
	VotingOverdue      bool
}

// NewBoard arma la vista de un pool. now se usa solo para los flags orientativos.
func NewBoard(pool Pool, subs []Submission, myVotes map[string]bool, participantID string, now time.Time) Board {
	b := Board{
		Pool:        pool,
		Submissions: subs,
		MyVotes:     myVotes,
	}
	if b.MyVotes == nil {
		b.MyVotes = map[string]bool{}
	}

	seen := make(map[string]bool)
	var winningOdds []float64
	for _, s := range subs {
		seen[s.ParticipantID] = true
		if s.IsWinningLeg {
			b.WinningLegs = append(b.WinningLegs, s)
			winningOdds = append(winningOdds, s.OddsDecimal)
		}
		if s.ParticipantID == participantID {
			b.MySubmissions = append(b.MySubmissions, s)
		}
	}
	b.ParticipantCount = len(seen)
	b.DisplayOdds = Combine(winningOdds)

	if !pool.SubmissionDeadline.IsZero() && pool.Phase == PhaseCollecting {
		b.SubmissionsOverdue = now.After(pool.SubmissionDeadline)
	}
	if !pool.VotingDeadline.IsZero() && pool.Phase == PhaseVoting {
		b.VotingOverdue = now.After(pool.VotingDeadline)
	}
	return b
}

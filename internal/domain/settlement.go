package domain

// settlement.go: cálculo puro del pozo y del pago por participante.
//
// Fórmulas:
//   - TotalStake = buyin × participantes distintos (los que enviaron legs)
//   - Won:  payout = TotalStake × CombinedOdds ÷ participantes
//   - Lost: payout = 0
//
// participantes = 0 es inalcanzable (no se llega a Placed sin submissions),
// así que se trata como violación de invariante y no como NaN.

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// currencyPlaces es la precisión de los importes (peniques).
const currencyPlaces = 2

// TotalStake calcula el pozo total del pool.
func TotalStake(buyin decimal.Decimal, participants int) (decimal.Decimal, error) {
	if participants <= 0 {
		return decimal.Zero, fmt.Errorf("domain.TotalStake: %w: %d participants", ErrInvariantViolation, participants)
	}
	return buyin.Mul(decimal.NewFromInt(int64(participants))), nil
}

// PayoutPerParticipant calcula lo que cobra cada participante al liquidar.
func PayoutPerParticipant(totalStake decimal.Decimal, combinedOdds float64, participants int, outcome Outcome) (decimal.Decimal, error) {
	if participants <= 0 {
		return decimal.Zero, fmt.Errorf("domain.PayoutPerParticipant: %w: %d participants", ErrInvariantViolation, participants)
	}
	switch outcome {
	case OutcomeLost:
		return decimal.Zero, nil
	case OutcomeWon:
	default:
		return decimal.Zero, fmt.Errorf("domain.PayoutPerParticipant: %w: %q", ErrInvalidOutcome, outcome)
	}
	if math.IsNaN(combinedOdds) || math.IsInf(combinedOdds, 0) || combinedOdds < 0 {
		return decimal.Zero, fmt.Errorf("domain.PayoutPerParticipant: %w: combined odds %v", ErrInvariantViolation, combinedOdds)
	}

	totalReturn := totalStake.Mul(decimal.NewFromFloat(combinedOdds))
	return totalReturn.Div(decimal.NewFromInt(int64(participants))).Round(currencyPlaces), nil
}

// DistinctParticipants cuenta los participantes únicos entre las submissions.
// Votar sin enviar legs no cuenta: enviar es lo que compra la entrada.
func DistinctParticipants(subs []Submission) int {
	seen := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		seen[s.ParticipantID] = struct{}{}
	}
	return len(seen)
}

// SelectWinners ordena por votos desc y devuelve las n primeras.
// Desempate: orden de llegada (Seq asc). No modifica el slice de entrada.
func SelectWinners(subs []Submission, n int) []Submission {
	ranked := make([]Submission, len(subs))
	copy(ranked, subs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].VoteCount != ranked[j].VoteCount {
			return ranked[i].VoteCount > ranked[j].VoteCount
		}
		return ranked[i].Seq < ranked[j].Seq
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	return ranked[:n]
}

// Settlement es el resultado de la transición Voting → Placed.
type Settlement struct {
	Winners      []Submission
	CombinedOdds float64
	TotalStake   decimal.Decimal
	Participants int
}

// PlacePool calcula ganadores, cuota combinada y pozo para un pool en votación.
func PlacePool(pool Pool, subs []Submission) (Settlement, error) {
	if len(subs) < pool.WinningLegsCount {
		return Settlement{}, fmt.Errorf("domain.PlacePool: %w: %d submissions, %d needed",
			ErrInsufficientSubmissions, len(subs), pool.WinningLegsCount)
	}

	winners := SelectWinners(subs, pool.WinningLegsCount)
	odds := make([]float64, len(winners))
	for i, w := range winners {
		odds[i] = w.OddsDecimal
	}

	participants := DistinctParticipants(subs)
	stake, err := TotalStake(pool.BuyinPerParticipant, participants)
	if err != nil {
		return Settlement{}, fmt.Errorf("domain.PlacePool: %w", err)
	}

	return Settlement{
		Winners:      winners,
		CombinedOdds: Combine(odds),
		TotalStake:   stake,
		Participants: participants,
	}, nil
}

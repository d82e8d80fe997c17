package pool

// lifecycle.go: máquina de estados del pool.
//
//	collecting_submissions → voting → placed → settled
//
// Cada transición lee el pool con bloqueo exclusivo, valida precondiciones y
// termina con un compare-and-set sobre phase. Si otra transición ganó la
// carrera, el CAS no toca filas y todo se deshace con ErrPhaseViolation.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
)

// stepFunc valida precondiciones dentro de la tx y devuelve los campos que cambian con la fase.
type stepFunc func(ctx context.Context, tx ports.PoolTx, p domain.Pool) (ports.PhaseUpdate, error)

// OpenVoting cierra los envíos y abre la votación. Requiere al menos una submission.
func (s *Service) OpenVoting(ctx context.Context, poolID string) (domain.Pool, error) {
	p, err := s.transition(ctx, "open_voting", poolID, domain.PhaseCollecting,
		func(ctx context.Context, tx ports.PoolTx, p domain.Pool) (ports.PhaseUpdate, error) {
			n, err := tx.CountSubmissions(ctx, poolID)
			if err != nil {
				return ports.PhaseUpdate{}, err
			}
			if n == 0 {
				return ports.PhaseUpdate{}, fmt.Errorf("%w: pool %s has no submissions", domain.ErrInsufficientSubmissions, poolID)
			}
			return ports.PhaseUpdate{To: domain.PhaseVoting}, nil
		})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool.OpenVoting: %w", err)
	}
	return p, nil
}

// Place cierra la votación: marca los legs ganadores y fija cuota combinada y pozo.
func (s *Service) Place(ctx context.Context, poolID string) (domain.Pool, error) {
	p, err := s.transition(ctx, "place", poolID, domain.PhaseVoting,
		func(ctx context.Context, tx ports.PoolTx, p domain.Pool) (ports.PhaseUpdate, error) {
			subs, err := tx.ListSubmissions(ctx, poolID)
			if err != nil {
				return ports.PhaseUpdate{}, err
			}
			st, err := domain.PlacePool(p, subs)
			if err != nil {
				return ports.PhaseUpdate{}, err
			}

			ids := make([]string, len(st.Winners))
			for i, w := range st.Winners {
				ids[i] = w.ID
			}
			if err := tx.MarkWinningLegs(ctx, poolID, ids); err != nil {
				return ports.PhaseUpdate{}, err
			}

			slog.Info("acca placed",
				"pool_id", poolID,
				"winning_legs", len(ids),
				"combined_odds", st.CombinedOdds,
				"total_stake", st.TotalStake.String(),
				"participants", st.Participants,
			)
			return ports.PhaseUpdate{
				To:           domain.PhasePlaced,
				CombinedOdds: &st.CombinedOdds,
				TotalStake:   &st.TotalStake,
			}, nil
		})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool.Place: %w", err)
	}
	return p, nil
}

// Settle registra el resultado de la acca y calcula el pago por participante.
func (s *Service) Settle(ctx context.Context, poolID string, outcome domain.Outcome) (domain.Pool, error) {
	if outcome != domain.OutcomeWon && outcome != domain.OutcomeLost {
		return domain.Pool{}, fmt.Errorf("pool.Settle: %w: %q", domain.ErrInvalidOutcome, outcome)
	}

	p, err := s.transition(ctx, "settle", poolID, domain.PhasePlaced,
		func(ctx context.Context, tx ports.PoolTx, p domain.Pool) (ports.PhaseUpdate, error) {
			if p.TotalStake == nil || p.CombinedOdds == nil {
				return ports.PhaseUpdate{}, fmt.Errorf("%w: placed pool %s without stake or odds", domain.ErrInvariantViolation, poolID)
			}
			subs, err := tx.ListSubmissions(ctx, poolID)
			if err != nil {
				return ports.PhaseUpdate{}, err
			}
			participants := domain.DistinctParticipants(subs)
			payout, err := domain.PayoutPerParticipant(*p.TotalStake, *p.CombinedOdds, participants, outcome)
			if err != nil {
				return ports.PhaseUpdate{}, err
			}

			legResult := domain.LegLost
			if outcome == domain.OutcomeWon {
				legResult = domain.LegWon
			}
			if err := tx.SetWinningLegResults(ctx, poolID, legResult); err != nil {
				return ports.PhaseUpdate{}, err
			}

			return ports.PhaseUpdate{
				To:                   domain.PhaseSettled,
				Outcome:              &outcome,
				PayoutPerParticipant: &payout,
			}, nil
		})
	if err != nil {
		return domain.Pool{}, fmt.Errorf("pool.Settle: %w", err)
	}
	return p, nil
}

// transition ejecuta un paso de la máquina de estados en una única transacción.
func (s *Service) transition(ctx context.Context, op, poolID string, from domain.Phase, step stepFunc) (p domain.Pool, err error) {
	defer s.observe(op, time.Now(), &err)

	to, _ := from.Next()
	err = s.store.WithinTx(ctx, func(tx ports.PoolTx) error {
		current, err := tx.GetPool(ctx, poolID, ports.LockExclusive)
		if err != nil {
			return err
		}
		if current.Phase != from {
			return fmt.Errorf("%w: pool %s is %s, want %s", domain.ErrPhaseViolation, poolID, current.Phase, from)
		}

		update, err := step(ctx, tx, current)
		if err != nil {
			return err
		}
		if update.To != to {
			return fmt.Errorf("%w: step from %s produced %s", domain.ErrInvariantViolation, from, update.To)
		}
		if err := tx.CompareAndSetPhase(ctx, poolID, from, update); err != nil {
			return err
		}

		if p, err = tx.GetPool(ctx, poolID, ports.LockNone); err != nil {
			return err
		}
		return p.CheckInvariants()
	})
	if err != nil {
		return domain.Pool{}, err
	}

	s.metrics.PhaseChanged(string(from), string(to))
	slog.Info("pool phase changed", "pool_id", poolID, "from", from, "to", to)

	events := []domain.Event{domain.NewEvent(domain.EventPhaseChanged, p, "", map[string]any{
		"from": string(from),
		"to":   string(to),
	})}
	if to == domain.PhaseSettled {
		events = append(events, domain.NewEvent(domain.EventPoolSettled, p, "", map[string]any{
			"outcome":                string(p.Outcome),
			"payout_per_participant": p.PayoutPerParticipant.String(),
		}))
	}
	s.publish(ctx, events...)
	return p, nil
}

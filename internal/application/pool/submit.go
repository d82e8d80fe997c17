package pool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/google/uuid"
)

// Submit reemplaza el set completo de legs del participante en el pool.
//
// Los legs sin selección o sin cuota se descartan; los restantes tienen que ser
// exactamente LegsPerParticipant. El borrado de los legs previos y la inserción de
// los nuevos ocurren en la misma transacción.
func (s *Service) Submit(ctx context.Context, poolID, participantID string, legs []domain.LegInput) (res domain.SubmitResult, err error) {
	defer s.observe("submit", time.Now(), &err)

	complete := make([]domain.LegInput, 0, len(legs))
	for _, l := range legs {
		if l.Complete() {
			complete = append(complete, l)
		}
	}

	var p domain.Pool
	err = s.store.WithinTx(ctx, func(tx ports.PoolTx) error {
		var err error
		// Exclusivo: ReplaceSubmissions escribe la fila del pool (submission_seq) y
		// un FOR SHARE previo haría que dos envíos concurrentes se bloqueen entre sí.
		if p, err = tx.GetPool(ctx, poolID, ports.LockExclusive); err != nil {
			return err
		}
		if p.Phase != domain.PhaseCollecting {
			return fmt.Errorf("%w: pool %s is %s", domain.ErrPhaseViolation, poolID, p.Phase)
		}
		if len(complete) != p.LegsPerParticipant {
			return fmt.Errorf("%w: %d complete legs, %d required",
				domain.ErrIncompleteSubmission, len(complete), p.LegsPerParticipant)
		}

		now := s.now()
		subs := make([]domain.Submission, len(complete))
		for i, l := range complete {
			odds := strings.TrimSpace(l.OddsFractional)
			subs[i] = domain.Submission{
				ID:             uuid.NewString(),
				LegIndex:       i,
				SelectionText:  strings.TrimSpace(l.SelectionText),
				EventLabel:     strings.TrimSpace(l.EventLabel),
				OddsFractional: odds,
				OddsDecimal:    domain.ToDecimal(odds),
				Result:         domain.LegPending,
				CreatedAt:      now,
			}
		}

		replaced, err := tx.ReplaceSubmissions(ctx, poolID, participantID, subs)
		if err != nil {
			return err
		}
		res = domain.SubmitResult{
			PoolID:        poolID,
			ParticipantID: participantID,
			Submissions:   subs,
			Replaced:      replaced,
		}
		return nil
	})
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("pool.Submit: %w", err)
	}

	slog.Debug("legs submitted",
		"pool_id", poolID,
		"participant_id", participantID,
		"legs", len(res.Submissions),
		"replaced", res.Replaced,
	)
	s.publish(ctx, domain.NewEvent(domain.EventSubmissionCreated, p, participantID, map[string]any{
		"legs":     len(res.Submissions),
		"replaced": res.Replaced,
	}))
	return res, nil
}

package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
)

// ToggleVote añade o retira el voto del participante sobre una submission.
//
// El voto y el contador cambian en la misma transacción; el contador solo se
// mueve con un incremento atómico en la DB, nunca con read-modify-write.
func (s *Service) ToggleVote(ctx context.Context, poolID, submissionID, participantID string) (state domain.VoteState, err error) {
	defer s.observe("toggle_vote", time.Now(), &err)

	var p domain.Pool
	err = s.store.WithinTx(ctx, func(tx ports.PoolTx) error {
		sub, err := tx.GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub.PoolID != poolID {
			return fmt.Errorf("%w: %s not in pool %s", domain.ErrSubmissionNotFound, submissionID, poolID)
		}
		// Antes que la fase: votarse a uno mismo falla siempre.
		if sub.ParticipantID == participantID {
			return fmt.Errorf("%w: %s", domain.ErrSelfVoteRejected, submissionID)
		}

		if p, err = tx.GetPool(ctx, poolID, ports.LockShared); err != nil {
			return err
		}
		if p.Phase != domain.PhaseVoting {
			return fmt.Errorf("%w: pool %s is %s", domain.ErrPhaseViolation, poolID, p.Phase)
		}

		inserted, err := tx.InsertVote(ctx, domain.Vote{
			SubmissionID:  submissionID,
			ParticipantID: participantID,
			PoolID:        poolID,
			CreatedAt:     s.now(),
		})
		if err != nil {
			return err
		}

		delta := 1
		if !inserted {
			removed, err := tx.DeleteVote(ctx, submissionID, participantID)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: vote on %s neither inserted nor removed", domain.ErrInvariantViolation, submissionID)
			}
			delta = -1
		}

		count, err := tx.AdjustVoteCount(ctx, submissionID, delta)
		if err != nil {
			return err
		}
		state = domain.VoteState{SubmissionID: submissionID, Voted: inserted, VoteCount: count}
		return nil
	})
	if err != nil {
		return domain.VoteState{}, fmt.Errorf("pool.ToggleVote: %w", err)
	}

	s.metrics.VoteToggled(state.Voted)
	slog.Debug("vote toggled",
		"pool_id", poolID,
		"submission_id", submissionID,
		"participant_id", participantID,
		"voted", state.Voted,
		"vote_count", state.VoteCount,
	)

	eventType := domain.EventVoteCast
	if !state.Voted {
		eventType = domain.EventVoteRetracted
	}
	s.publish(ctx, domain.NewEvent(eventType, p, participantID, map[string]any{
		"submission_id": submissionID,
		"vote_count":    state.VoteCount,
	}))
	return state, nil
}

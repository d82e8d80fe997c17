package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sub(id, participant string, votes int, seq int64, odds float64) Submission {
	return Submission{ID: id, ParticipantID: participant, VoteCount: votes, Seq: seq, OddsDecimal: odds}
}

// --- TotalStake / PayoutPerParticipant ---

func TestTotalStake_BuyinTimesParticipants(t *testing.T) {
	stake, err := TotalStake(decimal.NewFromInt(5), 4)
	require.NoError(t, err)
	assert.True(t, stake.Equal(decimal.NewFromInt(20)), stake.String())
}

func TestTotalStake_ZeroParticipantsIsInvariantViolation(t *testing.T) {
	_, err := TotalStake(decimal.NewFromInt(5), 0)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestPayoutPerParticipant_Won(t *testing.T) {
	// £20 × 3.5 / 4 = £17.50
	payout, err := PayoutPerParticipant(decimal.NewFromInt(20), 3.5, 4, OutcomeWon)
	require.NoError(t, err)
	assert.Equal(t, "17.5", payout.String())
}

func TestPayoutPerParticipant_Lost(t *testing.T) {
	payout, err := PayoutPerParticipant(decimal.NewFromInt(20), 3.5, 4, OutcomeLost)
	require.NoError(t, err)
	assert.True(t, payout.IsZero())
}

func TestPayoutPerParticipant_RoundsToPennies(t *testing.T) {
	// 10 × 2.5 / 3 = 8.3333...
	payout, err := PayoutPerParticipant(decimal.NewFromInt(10), 2.5, 3, OutcomeWon)
	require.NoError(t, err)
	assert.Equal(t, "8.33", payout.StringFixed(2))
}

func TestPayoutPerParticipant_ZeroParticipants(t *testing.T) {
	_, err := PayoutPerParticipant(decimal.NewFromInt(20), 3.5, 0, OutcomeWon)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestPayoutPerParticipant_UnresolvedOutcome(t *testing.T) {
	_, err := PayoutPerParticipant(decimal.NewFromInt(20), 3.5, 4, OutcomeUnresolved)
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

// --- SelectWinners ---

func TestSelectWinners_TopByVotes(t *testing.T) {
	subs := []Submission{
		sub("d", "p4", 3, 4, 2), sub("a", "p1", 7, 1, 2), sub("e", "p5", 1, 5, 2),
		sub("b", "p2", 5, 2, 2), sub("c", "p3", 5, 3, 2),
	}
	winners := SelectWinners(subs, 3)
	require.Len(t, winners, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{winners[0].ID, winners[1].ID, winners[2].ID})
}

func TestSelectWinners_TieBrokenByArrival(t *testing.T) {
	// votos [7,5,5,3,1] con solo 2 plazas: el 5 que llegó antes se queda
	subs := []Submission{
		sub("late5", "p3", 5, 9, 2), sub("top", "p1", 7, 1, 2),
		sub("early5", "p2", 5, 2, 2), sub("three", "p4", 3, 3, 2), sub("one", "p5", 1, 4, 2),
	}
	winners := SelectWinners(subs, 2)
	require.Len(t, winners, 2)
	assert.Equal(t, "top", winners[0].ID)
	assert.Equal(t, "early5", winners[1].ID)
}

func TestSelectWinners_DoesNotMutateInput(t *testing.T) {
	subs := []Submission{sub("a", "p1", 1, 1, 2), sub("b", "p2", 9, 2, 2)}
	SelectWinners(subs, 1)
	assert.Equal(t, "a", subs[0].ID)
}

func TestSelectWinners_MoreSlotsThanSubs(t *testing.T) {
	assert.Len(t, SelectWinners([]Submission{sub("a", "p1", 0, 1, 2)}, 5), 1)
}

// --- DistinctParticipants / PlacePool ---

func TestDistinctParticipants(t *testing.T) {
	subs := []Submission{sub("a", "p1", 0, 1, 2), sub("b", "p1", 0, 2, 2), sub("c", "p2", 0, 3, 2)}
	assert.Equal(t, 2, DistinctParticipants(subs))
	assert.Equal(t, 0, DistinctParticipants(nil))
}

func TestPlacePool_ComputesStakeAndOdds(t *testing.T) {
	pool := Pool{BuyinPerParticipant: decimal.NewFromInt(5), WinningLegsCount: 2}
	subs := []Submission{
		sub("a", "p1", 3, 1, 2.0), sub("b", "p2", 2, 2, 1.75),
		sub("c", "p3", 0, 3, 9.0), sub("d", "p4", 1, 4, 3.0),
	}
	st, err := PlacePool(pool, subs)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Participants)
	assert.True(t, st.TotalStake.Equal(decimal.NewFromInt(20)))
	assert.InDelta(t, 3.5, st.CombinedOdds, 1e-12)
	assert.Len(t, st.Winners, 2)
}

func TestPlacePool_InsufficientSubmissions(t *testing.T) {
	pool := Pool{BuyinPerParticipant: decimal.NewFromInt(5), WinningLegsCount: 5}
	subs := []Submission{sub("a", "p1", 0, 1, 2), sub("b", "p2", 0, 2, 2), sub("c", "p3", 0, 3, 2)}
	_, err := PlacePool(pool, subs)
	assert.ErrorIs(t, err, ErrInsufficientSubmissions)
}

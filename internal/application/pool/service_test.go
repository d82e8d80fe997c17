package pool_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/accapool/internal/adapters/storage"
	"github.com/alejandrodnm/accapool/internal/application/pool"
	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder guarda los eventos publicados.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*pool.Service, *storage.SQLStorage, *recorder) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec := &recorder{}
	svc := pool.New(pool.DefaultConfig(), db, rec, pool.WithClock(func() time.Time { return fixedNow }))
	return svc, db, rec
}

func createPool(t *testing.T, svc *pool.Service, legs, winning int, buyin int64) domain.Pool {
	t.Helper()
	p, err := svc.CreatePool(context.Background(), domain.PoolSpec{
		SeasonID:            "s1",
		Title:               "Saturday acca",
		BuyinPerParticipant: decimal.NewFromInt(buyin),
		LegsPerParticipant:  legs,
		WinningLegsCount:    winning,
	})
	require.NoError(t, err)
	return p
}

func legs(odds ...string) []domain.LegInput {
	out := make([]domain.LegInput, len(odds))
	for i, o := range odds {
		out[i] = domain.LegInput{SelectionText: fmt.Sprintf("Team %d to win", i), EventLabel: "EPL", OddsFractional: o}
	}
	return out
}

func mustSubmit(t *testing.T, svc *pool.Service, poolID, participant string, in []domain.LegInput) domain.SubmitResult {
	t.Helper()
	res, err := svc.Submit(context.Background(), poolID, participant, in)
	require.NoError(t, err)
	return res
}

// --- CreatePool ---

func TestCreatePool_AppliesDefaults(t *testing.T) {
	svc, _, rec := newService(t)

	p, err := svc.CreatePool(context.Background(), domain.PoolSpec{Title: "Weekend"})
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseCollecting, p.Phase)
	assert.True(t, p.BuyinPerParticipant.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 3, p.LegsPerParticipant)
	assert.Equal(t, 5, p.WinningLegsCount)
	assert.Equal(t, fixedNow.Add(24*time.Hour), p.SubmissionDeadline)
	assert.Equal(t, fixedNow.Add(36*time.Hour), p.VotingDeadline)
	assert.Equal(t, []domain.EventType{domain.EventPoolCreated}, rec.types())
}

func TestCreatePool_Invalid(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CreatePool(context.Background(), domain.PoolSpec{Title: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidPool)
}

// --- Submit ---

func TestSubmit_StoresLegsWithDecimalOdds(t *testing.T) {
	svc, _, rec := newService(t)
	p := createPool(t, svc, 2, 1, 2)

	res := mustSubmit(t, svc, p.ID, "alice", legs("6/4", "evens"))
	require.Len(t, res.Submissions, 2)
	assert.Equal(t, 0, res.Replaced)
	assert.InDelta(t, 2.5, res.Submissions[0].OddsDecimal, 1e-12)
	// "evens" no es a/b ni numérico: cae al sentinel de cuota par
	assert.InDelta(t, domain.EvenMoney, res.Submissions[1].OddsDecimal, 1e-12)
	assert.Contains(t, rec.types(), domain.EventSubmissionCreated)
}

func TestSubmit_ResubmissionReplaces(t *testing.T) {
	svc, db, _ := newService(t)
	p := createPool(t, svc, 3, 1, 2)

	mustSubmit(t, svc, p.ID, "alice", legs("1/1", "2/1", "3/1"))
	res := mustSubmit(t, svc, p.ID, "alice", legs("4/1", "5/1", "6/1"))
	assert.Equal(t, 3, res.Replaced)

	subs, err := db.ListSubmissions(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 3)
}

func TestSubmit_IncompleteStoresNothing(t *testing.T) {
	svc, db, _ := newService(t)
	p := createPool(t, svc, 3, 1, 2)

	in := legs("1/1", "2/1", "3/1")
	in[2].SelectionText = "   "
	_, err := svc.Submit(context.Background(), p.ID, "alice", in)
	assert.ErrorIs(t, err, domain.ErrIncompleteSubmission)

	// Demasiados legs también es incompleto: el cupo es exacto
	_, err = svc.Submit(context.Background(), p.ID, "alice", legs("1/1", "2/1", "3/1", "4/1"))
	assert.ErrorIs(t, err, domain.ErrIncompleteSubmission)

	subs, err := db.ListSubmissions(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubmit_IncompleteKeepsPreviousSet(t *testing.T) {
	svc, db, _ := newService(t)
	p := createPool(t, svc, 2, 1, 2)
	mustSubmit(t, svc, p.ID, "alice", legs("1/1", "2/1"))

	_, err := svc.Submit(context.Background(), p.ID, "alice", legs("9/1"))
	assert.ErrorIs(t, err, domain.ErrIncompleteSubmission)

	subs, err := db.ListSubmissions(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestSubmit_WrongPhase(t *testing.T) {
	svc, _, _ := newService(t)
	p := createPool(t, svc, 1, 1, 2)
	mustSubmit(t, svc, p.ID, "alice", legs("1/1"))
	_, err := svc.OpenVoting(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), p.ID, "bob", legs("2/1"))
	assert.ErrorIs(t, err, domain.ErrPhaseViolation)
}

func TestSubmit_UnknownPool(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Submit(context.Background(), "nope", "alice", legs("1/1"))
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

// lockRecorder envuelve el store y anota el modo de bloqueo de cada GetPool en tx.
type lockRecorder struct {
	ports.PoolStore
	mu    sync.Mutex
	modes []ports.LockMode
}

func (r *lockRecorder) WithinTx(ctx context.Context, fn func(tx ports.PoolTx) error) error {
	return r.PoolStore.WithinTx(ctx, func(tx ports.PoolTx) error {
		return fn(&lockRecordingTx{PoolTx: tx, rec: r})
	})
}

func (r *lockRecorder) recorded() []ports.LockMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.LockMode(nil), r.modes...)
}

type lockRecordingTx struct {
	ports.PoolTx
	rec *lockRecorder
}

func (t *lockRecordingTx) GetPool(ctx context.Context, poolID string, lock ports.LockMode) (domain.Pool, error) {
	t.rec.mu.Lock()
	t.rec.modes = append(t.rec.modes, lock)
	t.rec.mu.Unlock()
	return t.PoolTx.GetPool(ctx, poolID, lock)
}

func TestSubmit_LocksPoolExclusively(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := &lockRecorder{PoolStore: db}
	svc := pool.New(pool.DefaultConfig(), store, nil)

	p := createPool(t, svc, 1, 1, 2)
	mustSubmit(t, svc, p.ID, "alice", legs("2/1"))

	// Submit escribe submission_seq en la fila del pool: un FOR SHARE en Postgres
	// haría que dos envíos concurrentes se bloqueen mutuamente.
	assert.Equal(t, []ports.LockMode{ports.LockExclusive}, store.recorded())
}

func TestSubmit_ConcurrentParticipantsGetDistinctSeq(t *testing.T) {
	svc, db, _ := newService(t)
	p := createPool(t, svc, 2, 3, 2)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), p.ID, fmt.Sprintf("user-%d", i), legs("1/1", "2/1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	subs, err := db.ListSubmissions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 20)
	seen := map[int64]bool{}
	for _, s := range subs {
		assert.False(t, seen[s.Seq], "duplicate seq %d", s.Seq)
		seen[s.Seq] = true
	}
}

// --- ToggleVote ---

func votingPool(t *testing.T, svc *pool.Service) (domain.Pool, map[string]domain.Submission) {
	t.Helper()
	p := createPool(t, svc, 1, 2, 5)
	byOwner := map[string]domain.Submission{}
	for _, who := range []string{"alice", "bob", "carol"} {
		res := mustSubmit(t, svc, p.ID, who, legs("1/1"))
		byOwner[who] = res.Submissions[0]
	}
	_, err := svc.OpenVoting(context.Background(), p.ID)
	require.NoError(t, err)
	return p, byOwner
}

func TestToggleVote_CastAndRetract(t *testing.T) {
	svc, _, rec := newService(t)
	p, subs := votingPool(t, svc)
	ctx := context.Background()

	st, err := svc.ToggleVote(ctx, p.ID, subs["alice"].ID, "bob")
	require.NoError(t, err)
	assert.True(t, st.Voted)
	assert.Equal(t, 1, st.VoteCount)

	st, err = svc.ToggleVote(ctx, p.ID, subs["alice"].ID, "bob")
	require.NoError(t, err)
	assert.False(t, st.Voted)
	assert.Equal(t, 0, st.VoteCount)

	assert.Contains(t, rec.types(), domain.EventVoteCast)
	assert.Contains(t, rec.types(), domain.EventVoteRetracted)
}

func TestToggleVote_SelfVoteRejectedInEveryPhase(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p := createPool(t, svc, 1, 1, 2)
	res := mustSubmit(t, svc, p.ID, "alice", legs("1/1"))
	subID := res.Submissions[0].ID

	_, err := svc.ToggleVote(ctx, p.ID, subID, "alice")
	assert.ErrorIs(t, err, domain.ErrSelfVoteRejected)

	_, err = svc.OpenVoting(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.ToggleVote(ctx, p.ID, subID, "alice")
	assert.ErrorIs(t, err, domain.ErrSelfVoteRejected)

	_, err = svc.Place(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.ToggleVote(ctx, p.ID, subID, "alice")
	assert.ErrorIs(t, err, domain.ErrSelfVoteRejected)
}

func TestToggleVote_WrongPhase(t *testing.T) {
	svc, _, _ := newService(t)
	p := createPool(t, svc, 1, 1, 2)
	res := mustSubmit(t, svc, p.ID, "alice", legs("1/1"))

	_, err := svc.ToggleVote(context.Background(), p.ID, res.Submissions[0].ID, "bob")
	assert.ErrorIs(t, err, domain.ErrPhaseViolation)
}

func TestToggleVote_SubmissionFromOtherPool(t *testing.T) {
	svc, _, _ := newService(t)
	p, subs := votingPool(t, svc)
	other := createPool(t, svc, 1, 1, 2)

	_, err := svc.ToggleVote(context.Background(), other.ID, subs["alice"].ID, "bob")
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	_, err = svc.ToggleVote(context.Background(), p.ID, "missing", "bob")
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}

func TestToggleVote_ConcurrentTogglesBalance(t *testing.T) {
	svc, db, _ := newService(t)
	p, subs := votingPool(t, svc)
	target := subs["alice"].ID
	ctx := context.Background()

	// 30 votantes; los pares votan dos veces (se retractan), los impares una.
	const voters = 30
	var adds, removes atomic.Int32
	var wg sync.WaitGroup
	for i := range voters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := fmt.Sprintf("voter-%d", i)
			times := 1 + (i+1)%2
			for range times {
				st, err := svc.ToggleVote(ctx, p.ID, target, who)
				if !assert.NoError(t, err) {
					return
				}
				if st.Voted {
					adds.Add(1)
				} else {
					removes.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	all, err := db.ListSubmissions(ctx, p.ID)
	require.NoError(t, err)
	var count int
	for _, s := range all {
		if s.ID == target {
			count = s.VoteCount
		}
	}
	assert.Equal(t, int(adds.Load()-removes.Load()), count)
	assert.Equal(t, voters/2, count)
}

// --- Lifecycle ---

func TestOpenVoting_RequiresSubmissions(t *testing.T) {
	svc, db, _ := newService(t)
	p := createPool(t, svc, 1, 1, 2)

	_, err := svc.OpenVoting(context.Background(), p.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientSubmissions)

	got, err := db.GetPool(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCollecting, got.Phase)
}

func TestPlace_InsufficientSubmissionsKeepsVoting(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	p := createPool(t, svc, 1, 5, 2)
	for _, who := range []string{"a", "b", "c"} {
		mustSubmit(t, svc, p.ID, who, legs("1/1"))
	}
	_, err := svc.OpenVoting(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.Place(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientSubmissions)

	got, err := db.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseVoting, got.Phase)
	assert.Nil(t, got.CombinedOdds)
}

func TestPlace_SelectsTopVotedWithArrivalTieBreak(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	p := createPool(t, svc, 1, 3, 5)

	owners := []string{"p1", "p2", "p3", "p4", "p5"}
	ids := map[string]string{}
	for _, who := range owners {
		res := mustSubmit(t, svc, p.ID, who, legs("1/1"))
		ids[who] = res.Submissions[0].ID
	}
	_, err := svc.OpenVoting(ctx, p.ID)
	require.NoError(t, err)

	// votos: p1=4, p2=3, p3=2, p4=2, p5=1. La tercera plaza se la lleva p3 por llegar antes que p4.
	want := map[string]int{"p1": 4, "p2": 3, "p3": 2, "p4": 2, "p5": 1}
	for owner, n := range want {
		voters := 0
		for _, v := range owners {
			if v == owner || voters == n {
				continue
			}
			_, err := svc.ToggleVote(ctx, p.ID, ids[owner], v)
			require.NoError(t, err)
			voters++
		}
	}

	placed, err := svc.Place(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePlaced, placed.Phase)
	require.NotNil(t, placed.CombinedOdds)
	assert.InDelta(t, 8.0, *placed.CombinedOdds, 1e-12) // 2.0^3
	require.NotNil(t, placed.TotalStake)
	assert.True(t, placed.TotalStake.Equal(decimal.NewFromInt(25)), placed.TotalStake.String())

	subs, err := db.ListSubmissions(ctx, p.ID)
	require.NoError(t, err)
	winners := map[string]bool{}
	for _, s := range subs {
		if s.IsWinningLeg {
			winners[s.ParticipantID] = true
		}
	}
	assert.Equal(t, map[string]bool{"p1": true, "p2": true, "p3": true}, winners)
}

func TestPlace_ConcurrentCallsOnlyOneWins(t *testing.T) {
	svc, _, _ := newService(t)
	p, _ := votingPool(t, svc)

	var ok, violations atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Place(context.Background(), p.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, domain.ErrPhaseViolation):
				violations.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 4, violations.Load())
}

func TestSettle_WonPaysOut(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()

	// £5 × 4 participantes; legs 2/1 y 3/4 → 3.0 × 1.75 = 5.25
	p := createPool(t, svc, 1, 2, 5)
	mustSubmit(t, svc, p.ID, "a", legs("2/1"))
	mustSubmit(t, svc, p.ID, "b", legs("3/4"))
	mustSubmit(t, svc, p.ID, "c", legs("10/1"))
	mustSubmit(t, svc, p.ID, "d", legs("5/1"))
	_, err := svc.OpenVoting(ctx, p.ID)
	require.NoError(t, err)

	subs, err := db.ListSubmissions(ctx, p.ID)
	require.NoError(t, err)
	byOwner := map[string]string{}
	for _, s := range subs {
		byOwner[s.ParticipantID] = s.ID
	}
	for _, v := range []string{"c", "d"} {
		_, err := svc.ToggleVote(ctx, p.ID, byOwner["a"], v)
		require.NoError(t, err)
		_, err = svc.ToggleVote(ctx, p.ID, byOwner["b"], v)
		require.NoError(t, err)
	}

	placed, err := svc.Place(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.25, *placed.CombinedOdds, 1e-12)

	settled, err := svc.Settle(ctx, p.ID, domain.OutcomeWon)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSettled, settled.Phase)
	assert.Equal(t, domain.OutcomeWon, settled.Outcome)
	require.NotNil(t, settled.PayoutPerParticipant)
	// 20 × 5.25 / 4 = 26.25
	assert.Equal(t, "26.25", settled.PayoutPerParticipant.StringFixed(2))
	assert.NotNil(t, settled.SettledAt)

	subs, err = db.ListSubmissions(ctx, p.ID)
	require.NoError(t, err)
	for _, s := range subs {
		if s.IsWinningLeg {
			assert.Equal(t, domain.LegWon, s.Result)
		} else {
			assert.Equal(t, domain.LegPending, s.Result)
		}
	}
	assert.Contains(t, rec.types(), domain.EventPoolSettled)
}

func TestSettle_LostPaysNothing(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := votingPool(t, svc)
	_, err := svc.Place(ctx, p.ID)
	require.NoError(t, err)

	settled, err := svc.Settle(ctx, p.ID, domain.OutcomeLost)
	require.NoError(t, err)
	assert.True(t, settled.PayoutPerParticipant.IsZero())
}

func TestSettle_Errors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, _ := votingPool(t, svc)

	_, err := svc.Settle(ctx, p.ID, domain.OutcomeUnresolved)
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)

	// Todavía en votación
	_, err = svc.Settle(ctx, p.ID, domain.OutcomeWon)
	assert.ErrorIs(t, err, domain.ErrPhaseViolation)
}

// --- Board / Delete ---

func TestGetBoard(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, subs := votingPool(t, svc)

	_, err := svc.ToggleVote(ctx, p.ID, subs["bob"].ID, "alice")
	require.NoError(t, err)

	b, err := svc.GetBoard(ctx, p.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, b.ParticipantCount)
	assert.Len(t, b.Submissions, 3)
	assert.Equal(t, subs["bob"].ID, b.Submissions[0].ID)
	assert.True(t, b.MyVotes[subs["bob"].ID])
	require.Len(t, b.MySubmissions, 1)
	assert.Equal(t, subs["alice"].ID, b.MySubmissions[0].ID)
	assert.Equal(t, 1.0, b.DisplayOdds)
	assert.False(t, b.VotingOverdue)
}

func TestDeletePool(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	p, _ := votingPool(t, svc)

	require.NoError(t, svc.DeletePool(ctx, p.ID))
	_, err := svc.GetPool(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	assert.Contains(t, rec.types(), domain.EventPoolDeleted)

	assert.ErrorIs(t, svc.DeletePool(ctx, p.ID), domain.ErrPoolNotFound)
}

func TestListPools(t *testing.T) {
	svc, _, _ := newService(t)
	createPool(t, svc, 1, 1, 2)
	createPool(t, svc, 1, 1, 2)

	pools, err := svc.ListPools(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, pools, 2)
}

package metrics_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/accapool/internal/adapters/metrics"
	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Metrics = (*metrics.Recorder)(nil)

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("pool.Place: %w", domain.ErrPhaseViolation), "phase_violation"},
		{domain.ErrSelfVoteRejected, "self_vote"},
		{domain.ErrSubmissionNotFound, "not_found"},
		{domain.ErrInvalidOutcome, "invalid_input"},
		{domain.ErrInvariantViolation, "invariant_violation"},
		{errors.New("disk full"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metrics.ResultLabel(tt.err))
	}
}

func TestRecorder_Counters(t *testing.T) {
	r := metrics.New(metrics.WithNamespace("test"))

	r.ObserveOperation("submit", nil, 3*time.Millisecond)
	r.ObserveOperation("submit", domain.ErrIncompleteSubmission, time.Millisecond)
	r.VoteToggled(true)
	r.VoteToggled(true)
	r.VoteToggled(false)
	r.PhaseChanged("voting", "placed")
	r.ObserveHTTP("/api/pools/:id", http.MethodGet, 200, time.Millisecond)

	count, err := testutil.GatherAndCount(r.Registry(), "test_engine_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // dos series: ok e incomplete_submission

	count, err = testutil.GatherAndCount(r.Registry(), "test_engine_vote_toggles_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(r.Registry(), "test_engine_phase_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecorder_Handler(t *testing.T) {
	r := metrics.New()
	r.PhaseChanged("collecting_submissions", "voting")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `accapool_engine_phase_transitions_total{from="collecting_submissions",to="voting"} 1`)
}

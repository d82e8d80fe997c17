package httpapi

import (
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/shopspring/decimal"
)

type createPoolRequest struct {
	SeasonID           string     `json:"season_id"`
	Title              string     `json:"title" binding:"required"`
	Buyin              string     `json:"buyin_per_participant"`
	LegsPerParticipant int        `json:"legs_per_participant"`
	WinningLegsCount   int        `json:"winning_legs_count"`
	SubmissionDeadline *time.Time `json:"submission_deadline"`
	VotingDeadline     *time.Time `json:"voting_deadline"`
}

func (r createPoolRequest) toSpec() (domain.PoolSpec, error) {
	spec := domain.PoolSpec{
		SeasonID:           r.SeasonID,
		Title:              r.Title,
		LegsPerParticipant: r.LegsPerParticipant,
		WinningLegsCount:   r.WinningLegsCount,
	}
	if r.Buyin != "" {
		buyin, err := decimal.NewFromString(r.Buyin)
		if err != nil {
			return domain.PoolSpec{}, err
		}
		spec.BuyinPerParticipant = buyin
	}
	if r.SubmissionDeadline != nil {
		spec.SubmissionDeadline = r.SubmissionDeadline.UTC()
	}
	if r.VotingDeadline != nil {
		spec.VotingDeadline = r.VotingDeadline.UTC()
	}
	return spec, nil
}

type legRequest struct {
	Selection string `json:"selection"`
	Event     string `json:"event"`
	Odds      string `json:"odds"`
}

type submitRequest struct {
	Legs []legRequest `json:"legs"`
}

func (r submitRequest) toLegs() []domain.LegInput {
	legs := make([]domain.LegInput, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = domain.LegInput{SelectionText: l.Selection, EventLabel: l.Event, OddsFractional: l.Odds}
	}
	return legs
}

type settleRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

type poolResponse struct {
	ID                   string     `json:"id"`
	SeasonID             string     `json:"season_id,omitempty"`
	Title                string     `json:"title"`
	Phase                string     `json:"phase"`
	Outcome              string     `json:"outcome"`
	BuyinPerParticipant  string     `json:"buyin_per_participant"`
	LegsPerParticipant   int        `json:"legs_per_participant"`
	WinningLegsCount     int        `json:"winning_legs_count"`
	SubmissionDeadline   *time.Time `json:"submission_deadline,omitempty"`
	VotingDeadline       *time.Time `json:"voting_deadline,omitempty"`
	CombinedOdds         *float64   `json:"combined_odds,omitempty"`
	TotalStake           *string    `json:"total_stake,omitempty"`
	PayoutPerParticipant *string    `json:"payout_per_participant,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	PlacedAt             *time.Time `json:"placed_at,omitempty"`
	SettledAt            *time.Time `json:"settled_at,omitempty"`
}

func toPoolResponse(p domain.Pool) poolResponse {
	r := poolResponse{
		ID:                  p.ID,
		SeasonID:            p.SeasonID,
		Title:               p.Title,
		Phase:               string(p.Phase),
		Outcome:             string(p.Outcome),
		BuyinPerParticipant: p.BuyinPerParticipant.StringFixed(2),
		LegsPerParticipant:  p.LegsPerParticipant,
		WinningLegsCount:    p.WinningLegsCount,
		CombinedOdds:        p.CombinedOdds,
		CreatedAt:           p.CreatedAt,
		PlacedAt:            p.PlacedAt,
		SettledAt:           p.SettledAt,
	}
	if !p.SubmissionDeadline.IsZero() {
		t := p.SubmissionDeadline
		r.SubmissionDeadline = &t
	}
	if !p.VotingDeadline.IsZero() {
		t := p.VotingDeadline
		r.VotingDeadline = &t
	}
	if p.TotalStake != nil {
		s := p.TotalStake.StringFixed(2)
		r.TotalStake = &s
	}
	if p.PayoutPerParticipant != nil {
		s := p.PayoutPerParticipant.StringFixed(2)
		r.PayoutPerParticipant = &s
	}
	return r
}

type submissionResponse struct {
	ID             string  `json:"id"`
	ParticipantID  string  `json:"participant_id"`
	LegIndex       int     `json:"leg_index"`
	Selection      string  `json:"selection"`
	Event          string  `json:"event,omitempty"`
	OddsFractional string  `json:"odds_fractional"`
	OddsDecimal    float64 `json:"odds_decimal"`
	VoteCount      int     `json:"vote_count"`
	IsWinningLeg   bool    `json:"is_winning_leg"`
	Result         string  `json:"result"`
	VotedByMe      bool    `json:"voted_by_me"`
}

func toSubmissionResponses(subs []domain.Submission, myVotes map[string]bool) []submissionResponse {
	out := make([]submissionResponse, len(subs))
	for i, s := range subs {
		out[i] = submissionResponse{
			ID:             s.ID,
			ParticipantID:  s.ParticipantID,
			LegIndex:       s.LegIndex,
			Selection:      s.SelectionText,
			Event:          s.EventLabel,
			OddsFractional: s.OddsFractional,
			OddsDecimal:    s.OddsDecimal,
			VoteCount:      s.VoteCount,
			IsWinningLeg:   s.IsWinningLeg,
			Result:         string(s.Result),
			VotedByMe:      myVotes[s.ID],
		}
	}
	return out
}

type boardResponse struct {
	Pool               poolResponse         `json:"pool"`
	Submissions        []submissionResponse `json:"submissions"`
	MySubmissionIDs    []string             `json:"my_submission_ids"`
	ParticipantCount   int                  `json:"participant_count"`
	DisplayOdds        float64              `json:"display_odds"`
	DisplayFractional  string               `json:"display_fractional"`
	SubmissionsOverdue bool                 `json:"submissions_overdue"`
	VotingOverdue      bool                 `json:"voting_overdue"`
}

func toBoardResponse(b domain.Board) boardResponse {
	mine := make([]string, len(b.MySubmissions))
	for i, s := range b.MySubmissions {
		mine[i] = s.ID
	}
	return boardResponse{
		Pool:               toPoolResponse(b.Pool),
		Submissions:        toSubmissionResponses(b.Submissions, b.MyVotes),
		MySubmissionIDs:    mine,
		ParticipantCount:   b.ParticipantCount,
		DisplayOdds:        b.DisplayOdds,
		DisplayFractional:  domain.ToFractional(b.DisplayOdds),
		SubmissionsOverdue: b.SubmissionsOverdue,
		VotingOverdue:      b.VotingOverdue,
	}
}

type activityResponse struct {
	Type          string         `json:"type"`
	ParticipantID string         `json:"participant_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Data          map[string]any `json:"data,omitempty"`
}

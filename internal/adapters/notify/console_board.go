package notify

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// PrintBoard imprime el estado completo de un pool: cabecera, legs por ranking y pozo.
func (c *Console) PrintBoard(b domain.Board) {
	p := b.Pool

	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  %s\n", p.Title)
	fmt.Fprintf(c.out, "  Phase: %s | Buy-in: £%s | %d legs each | acca of %d\n",
		p.Phase, p.BuyinPerParticipant.StringFixed(2), p.LegsPerParticipant, p.WinningLegsCount)
	fmt.Fprintf(c.out, "========================================================\n\n")

	if len(b.Submissions) == 0 {
		fmt.Fprintln(c.out, "  (no legs submitted yet)")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Participant", "Selection", "Event", "Odds", "Dec", "Votes", "Acca", "Result")
		for i, s := range b.Submissions {
			acca := ""
			if s.IsWinningLeg {
				acca = "*"
			}
			table.Append(
				fmt.Sprintf("%d", i+1),
				s.ParticipantID,
				truncate(s.SelectionText, 35),
				truncate(s.EventLabel, 25),
				s.OddsFractional,
				fmt.Sprintf("%.2f", s.OddsDecimal),
				fmt.Sprintf("%d", s.VoteCount),
				acca,
				string(s.Result),
			)
		}
		table.Render()
	}

	fmt.Fprintf(c.out, "\n  --- POOL ---\n")
	fmt.Fprintf(c.out, "  Participants:          %d\n", b.ParticipantCount)
	fmt.Fprintf(c.out, "  Acca odds:             %.2f (%s)\n", b.DisplayOdds, domain.ToFractional(b.DisplayOdds))
	if p.TotalStake != nil {
		fmt.Fprintf(c.out, "  Total stake:           £%s\n", p.TotalStake.StringFixed(2))
	}
	if p.PayoutPerParticipant != nil {
		fmt.Fprintf(c.out, "  Payout / participant:  £%s (%s)\n", p.PayoutPerParticipant.StringFixed(2), p.Outcome)
	}

	switch p.Phase {
	case domain.PhaseCollecting:
		fmt.Fprintf(c.out, "  Submissions close:     %s%s\n", deadlineLabel(p.SubmissionDeadline), overdueLabel(b.SubmissionsOverdue))
	case domain.PhaseVoting:
		fmt.Fprintf(c.out, "  Voting closes:         %s%s\n", deadlineLabel(p.VotingDeadline), overdueLabel(b.VotingOverdue))
	}
	fmt.Fprintln(c.out)
}

func deadlineLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Mon 02 Jan 15:04")
}

func overdueLabel(overdue bool) string {
	if overdue {
		return " (OVERDUE)"
	}
	return ""
}

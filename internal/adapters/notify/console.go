package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo una línea por evento.
// También imprime el board y el listado de pools para la CLI.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Publish imprime el evento en una línea.
func (c *Console) Publish(_ context.Context, e domain.Event) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %-20s pool=%s", e.OccurredAt.Format("15:04:05"), e.Type, shortID(e.PoolID))
	if e.ParticipantID != "" {
		fmt.Fprintf(&sb, " by=%s", e.ParticipantID)
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Data[k])
	}

	fmt.Fprintln(c.out, sb.String())
	return nil
}

// PrintPools imprime el listado de pools de una temporada.
func (c *Console) PrintPools(pools []domain.Pool) {
	if len(pools) == 0 {
		fmt.Fprintln(c.out, "  No pools found.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Title", "Season", "Phase", "Buy-in", "Legs", "Acca", "Odds")
	for _, p := range pools {
		odds := "-"
		if p.CombinedOdds != nil {
			odds = fmt.Sprintf("%.2f", *p.CombinedOdds)
		}
		table.Append(
			shortID(p.ID),
			truncate(p.Title, 30),
			p.SeasonID,
			string(p.Phase),
			"£"+p.BuyinPerParticipant.StringFixed(2),
			fmt.Sprintf("%d", p.LegsPerParticipant),
			fmt.Sprintf("%d", p.WinningLegsCount),
			odds,
		)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

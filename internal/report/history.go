package report

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"querynerd/internal/store"
)

const queryWidth = 60

// History renders stored runs as a table, one row per run in the order
// given.
func History(runs []store.Run) string {
	st := DefaultStyles()
	header := lipgloss.NewStyle().Foreground(Primary).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := "ok"
		if r.Degraded {
			status = "degraded"
		}
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			string(r.State.Task),
			status,
			truncate(r.State.Query, queryWidth),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(st.Muted).
		Headers("ID", "CREATED", "TASK", "STATUS", "QUERY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 3 && runs[row].Degraded:
				return cell.Foreground(Warning)
			case col == 1:
				return cell.Foreground(Muted)
			default:
				return cell
			}
		})
	return t.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

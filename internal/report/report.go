// Package report renders pipeline states for the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"querynerd/internal/pipeline"
)

// Markdown describes a finished state as a Markdown document.
func Markdown(s pipeline.State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", s.Query)
	fmt.Fprintf(&b, "**Task:** `%s`\n\n", orNone(string(s.Task)))

	b.WriteString("## Constraints\n\n")
	if len(s.Constraints) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		for _, k := range sortedKeys(s.Constraints) {
			fmt.Fprintf(&b, "- **%s**: %v\n", k, s.Constraints[k])
		}
		b.WriteString("\n")
	}

	if len(s.SafetyFlags) > 0 {
		b.WriteString("## Safety flags\n\n")
		for _, f := range s.SafetyFlags {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Retrieval plan\n\n")
	if s.Plan == nil {
		b.WriteString("_no plan_\n\n")
	} else {
		b.WriteString("| | |\n|---|---|\n")
		fmt.Fprintf(&b, "| Sources | %s |\n", joinOrNone(s.Plan.Sources))
		fmt.Fprintf(&b, "| Fields | %s |\n", joinOrNone(s.Plan.RetrievalFields))
		fmt.Fprintf(&b, "| Compare by | %s |\n", joinOrNone(s.Plan.ComparisonCriteria))
		filters := make([]string, 0, len(s.Plan.Filters))
		for _, k := range sortedKeys(s.Plan.Filters) {
			filters = append(filters, fmt.Sprintf("%s=%v", k, s.Plan.Filters[k]))
		}
		fmt.Fprintf(&b, "| Filters | %s |\n\n", joinOrNone(filters))
	}

	b.WriteString("## Steps\n\n")
	for i, e := range s.StepLog {
		status := "ok"
		if !e.Success {
			status = "failed: " + e.Error
		}
		fmt.Fprintf(&b, "%d. `%s` %s (%d ms)\n", i+1, e.Node, status, e.DurationMs)
	}
	if s.Degraded() {
		b.WriteString("\n> Some steps failed; defaults were used.\n")
	}
	return b.String()
}

// Render formats markdown for a terminal. With auto set the style follows
// the terminal background; otherwise plain text styling is used.
func Render(markdown string, width int, auto bool) (string, error) {
	style := glamour.WithStandardStyle("notty")
	if auto {
		style = glamour.WithAutoStyle()
	}
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render(markdown)
}

// Summary is a compact, styled view of a state: task, plan sources and one
// line per audit entry.
func Summary(s pipeline.State) string {
	st := DefaultStyles()

	lines := []string{
		st.Title.Render(s.Query),
		st.Label.Render("task") + string(s.Task),
	}
	if len(s.SafetyFlags) > 0 {
		lines = append(lines, st.Label.Render("flags")+st.Warning.Render(strings.Join(s.SafetyFlags, ", ")))
	}
	if s.Plan != nil {
		lines = append(lines,
			st.Label.Render("sources")+joinOrNone(s.Plan.Sources),
			st.Label.Render("fields")+joinOrNone(s.Plan.RetrievalFields))
	}
	for _, e := range s.StepLog {
		mark := st.Success.Render("✓")
		detail := st.Muted.Render(fmt.Sprintf("%dms", e.DurationMs))
		if !e.Success {
			mark = st.Error.Render("✗")
			detail = st.Error.Render(e.Error)
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", mark, st.Label.Render(e.Node), detail))
	}
	return st.Box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

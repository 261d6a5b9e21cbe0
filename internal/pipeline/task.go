package pipeline

import (
	"fmt"
	"strings"
)

var knownTasks = []Task{
	TaskProductSearch,
	TaskProductComparison,
	TaskRecommendation,
	TaskProductQuestion,
	TaskOutOfScope,
}

// KnownTasks lists every task the router may assign.
func KnownTasks() []Task {
	out := make([]Task, len(knownTasks))
	copy(out, knownTasks)
	return out
}

// ParseTask normalizes raw (case, surrounding space, leading slash, dashes)
// and returns the matching Task.
func ParseTask(raw string) (Task, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.TrimPrefix(norm, "/")
	norm = strings.ReplaceAll(norm, "-", "_")
	for _, t := range knownTasks {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task %q", raw)
}

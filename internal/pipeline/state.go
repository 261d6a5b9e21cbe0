// Package pipeline implements the router and planner stage of the query
// pipeline: a shared State threaded through nodes, the nodes themselves, and
// the plan validator that repairs retrieval plans.
package pipeline

import (
	"maps"
	"slices"
	"time"
)

// Task identifies the kind of request the router classified a query as.
type Task string

const (
	TaskProductSearch     Task = "product_search"
	TaskProductComparison Task = "product_comparison"
	TaskRecommendation    Task = "recommendation"
	TaskProductQuestion   Task = "product_question"
	TaskOutOfScope        Task = "out_of_scope"
)

// DefaultTask is what the router falls back to when classification fails.
const DefaultTask = TaskProductSearch

// State is the record threaded through every node of the pipeline.
// Nodes take a State by value and return a new one; see Clone.
type State struct {
	Query       string         `json:"query"`
	Task        Task           `json:"task,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`
	SafetyFlags []string       `json:"safety_flags,omitempty"`
	Plan        *RetrievalPlan `json:"plan,omitempty"`
	StepLog     []AuditEntry   `json:"step_log"`
}

// NewState creates a state holding only the query.
func NewState(query string) State {
	return State{Query: query, StepLog: []AuditEntry{}}
}

// Clone returns a copy of s that shares no slices or maps with it.
// Constraint values are copied one level deep.
func (s State) Clone() State {
	out := s
	if s.Constraints != nil {
		out.Constraints = maps.Clone(s.Constraints)
	}
	if s.SafetyFlags != nil {
		out.SafetyFlags = slices.Clone(s.SafetyFlags)
	}
	if s.Plan != nil {
		p := s.Plan.Clone()
		out.Plan = &p
	}
	out.StepLog = slices.Clone(s.StepLog)
	if out.StepLog == nil {
		out.StepLog = []AuditEntry{}
	}
	return out
}

// Degraded reports whether any node in the step log fell back to a default.
func (s State) Degraded() bool {
	for _, e := range s.StepLog {
		if !e.Success {
			return true
		}
	}
	return false
}

// LastEntry returns the most recent audit entry.
func (s State) LastEntry() (AuditEntry, bool) {
	if len(s.StepLog) == 0 {
		return AuditEntry{}, false
	}
	return s.StepLog[len(s.StepLog)-1], true
}

// AuditEntry records one node invocation. Exactly one of Output and Error
// is set.
type AuditEntry struct {
	Node       string    `json:"node"`
	Input      any       `json:"input,omitempty"`
	Output     any       `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	Success    bool      `json:"success"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"dur_ms"`
}

// RouterOutput is the audit output of a successful router invocation.
type RouterOutput struct {
	Task        Task           `json:"task"`
	Constraints map[string]any `json:"constraints"`
	SafetyFlags []string       `json:"safety_flags"`
}

func succeeded(node string, started time.Time, input, output any) AuditEntry {
	return AuditEntry{
		Node:       node,
		Input:      input,
		Output:     output,
		Success:    true,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
	}
}

func failed(node string, started time.Time, err error) AuditEntry {
	return AuditEntry{
		Node:       node,
		Error:      err.Error(),
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
	}
}

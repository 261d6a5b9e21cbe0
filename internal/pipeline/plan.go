package pipeline

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// RetrievalPlan says which sources to query, which fields to pull back and
// how to compare the results.
type RetrievalPlan struct {
	Sources            []string       `json:"sources"`
	RetrievalFields    []string       `json:"retrieval_fields"`
	ComparisonCriteria []string       `json:"comparison_criteria"`
	Filters            map[string]any `json:"filters"`
}

// DefaultSource is the source used when a plan names none.
const DefaultSource = "private_rag"

// DefaultFallbackPlan is the plan the planner stores when generation fails.
func DefaultFallbackPlan() RetrievalPlan {
	return RetrievalPlan{
		Sources:            []string{DefaultSource},
		RetrievalFields:    []string{"title", "brand", "price", "rating"},
		ComparisonCriteria: []string{"price", "rating"},
		Filters:            map[string]any{},
	}
}

// Clone returns a copy of p that shares no slices or maps with it.
func (p RetrievalPlan) Clone() RetrievalPlan {
	out := RetrievalPlan{
		Sources:            slices.Clone(p.Sources),
		RetrievalFields:    slices.Clone(p.RetrievalFields),
		ComparisonCriteria: slices.Clone(p.ComparisonCriteria),
	}
	if p.Filters != nil {
		out.Filters = maps.Clone(p.Filters)
	}
	return out
}

// UnmarshalJSON decodes a plan the way a model tends to emit it: list fields
// keep only their string entries, and a filters value that is not an object
// decodes to nil so Validate can replace it.
func (p *RetrievalPlan) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("retrieval plan: %w", err)
	}
	*p = RetrievalPlan{
		Sources:            stringList(raw["sources"]),
		RetrievalFields:    stringList(raw["retrieval_fields"]),
		ComparisonCriteria: stringList(raw["comparison_criteria"]),
	}
	if msg, ok := raw["filters"]; ok {
		var filters map[string]any
		if err := json.Unmarshal(msg, &filters); err == nil {
			p.Filters = filters
		}
	}
	return nil
}

// ParsePlan decodes a JSON plan document.
func ParsePlan(data []byte) (RetrievalPlan, error) {
	var p RetrievalPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return RetrievalPlan{}, err
	}
	return p, nil
}

func stringList(msg json.RawMessage) []string {
	if len(msg) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(msg, &items); err != nil {
		// A bare string is accepted as a one-element list.
		var single string
		if json.Unmarshal(msg, &single) == nil && single != "" {
			return []string{single}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

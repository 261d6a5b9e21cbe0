package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Constraints is what the classifier extracted from the query. Known
// constraint kinds have typed fields; a nil pointer or empty slice means the
// classifier left the field unset. Anything else lands in Other.
type Constraints struct {
	BudgetMin          *float64       `json:"budget_min,omitempty"`
	BudgetMax          *float64       `json:"budget_max,omitempty"`
	Brand              *string        `json:"brand,omitempty"`
	Category           *string        `json:"category,omitempty"`
	Material           *string        `json:"material,omitempty"`
	MinRating          *float64       `json:"min_rating,omitempty"`
	InStock            *bool          `json:"in_stock,omitempty"`
	Features           []string       `json:"features,omitempty"`
	ExcludeIngredients []string       `json:"exclude_ingredients,omitempty"`
	Other              map[string]any `json:"-"`
}

var knownConstraintKeys = map[string]struct{}{
	"budget_min":          {},
	"budget_max":          {},
	"brand":               {},
	"category":            {},
	"material":            {},
	"min_rating":          {},
	"in_stock":            {},
	"features":            {},
	"exclude_ingredients": {},
}

// AsMap flattens c into a mapping, leaving out every unset field.
// The result is never nil.
func (c Constraints) AsMap() map[string]any {
	out := make(map[string]any)
	for k, v := range c.Other {
		if v == nil {
			continue
		}
		if _, known := knownConstraintKeys[k]; known {
			continue
		}
		out[k] = v
	}
	if c.BudgetMin != nil {
		out["budget_min"] = *c.BudgetMin
	}
	if c.BudgetMax != nil {
		out["budget_max"] = *c.BudgetMax
	}
	if c.Brand != nil {
		out["brand"] = *c.Brand
	}
	if c.Category != nil {
		out["category"] = *c.Category
	}
	if c.Material != nil {
		out["material"] = *c.Material
	}
	if c.MinRating != nil {
		out["min_rating"] = *c.MinRating
	}
	if c.InStock != nil {
		out["in_stock"] = *c.InStock
	}
	if len(c.Features) > 0 {
		out["features"] = append([]string(nil), c.Features...)
	}
	if len(c.ExcludeIngredients) > 0 {
		out["exclude_ingredients"] = append([]string(nil), c.ExcludeIngredients...)
	}
	return out
}

// UnmarshalJSON decodes the known fields leniently and collects the rest
// into Other. Numbers and booleans may arrive as strings, and a bare string
// stands for a one-element list. A known key whose value still cannot be
// read is dropped. JSON nulls are treated as unset.
func (c *Constraints) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("constraints: %w", err)
	}

	*c = Constraints{}
	for k, msg := range raw {
		if isNull(msg) {
			continue
		}
		switch k {
		case "budget_min":
			c.BudgetMin = laxFloat(msg)
		case "budget_max":
			c.BudgetMax = laxFloat(msg)
		case "min_rating":
			c.MinRating = laxFloat(msg)
		case "brand":
			c.Brand = laxString(msg)
		case "category":
			c.Category = laxString(msg)
		case "material":
			c.Material = laxString(msg)
		case "in_stock":
			c.InStock = laxBool(msg)
		case "features":
			c.Features = stringList(msg)
		case "exclude_ingredients":
			c.ExcludeIngredients = stringList(msg)
		default:
			var v any
			if err := json.Unmarshal(msg, &v); err != nil {
				continue
			}
			if c.Other == nil {
				c.Other = make(map[string]any)
			}
			c.Other[k] = v
		}
	}
	return nil
}

func isNull(msg json.RawMessage) bool {
	return len(msg) == 0 || string(bytes.TrimSpace(msg)) == "null"
}

func laxFloat(msg json.RawMessage) *float64 {
	var f float64
	if json.Unmarshal(msg, &f) == nil {
		return &f
	}
	var s string
	if json.Unmarshal(msg, &s) != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$")), 64)
	if err != nil {
		return nil
	}
	return &f
}

func laxBool(msg json.RawMessage) *bool {
	var b bool
	if json.Unmarshal(msg, &b) == nil {
		return &b
	}
	var s string
	if json.Unmarshal(msg, &s) != nil {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &b
}

func laxString(msg json.RawMessage) *string {
	var s string
	if json.Unmarshal(msg, &s) != nil || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// MarshalJSON writes the same mapping AsMap returns.
func (c Constraints) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.AsMap())
}

// Clone returns a copy of c with its own slices and Other map.
func (c Constraints) Clone() Constraints {
	out := c
	out.Features = append([]string(nil), c.Features...)
	out.ExcludeIngredients = append([]string(nil), c.ExcludeIngredients...)
	if c.Other != nil {
		out.Other = maps.Clone(c.Other)
	}
	return out
}

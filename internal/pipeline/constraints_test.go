package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestConstraints_AsMapExcludesUnset(t *testing.T) {
	c := Constraints{
		BudgetMax: ptr(100.0),
		Brand:     ptr("acme"),
		InStock:   ptr(false),
		Other:     map[string]any{"color": "red", "size": nil},
	}

	got := c.AsMap()
	assert.Equal(t, map[string]any{
		"budget_max": 100.0,
		"brand":      "acme",
		"in_stock":   false,
		"color":      "red",
	}, got)
	assert.NotContains(t, got, "budget_min")
	assert.NotContains(t, got, "size")
}

func TestConstraints_AsMapEmptyIsNotNil(t *testing.T) {
	got := Constraints{}.AsMap()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestConstraints_UnmarshalRoutesUnknownKeys(t *testing.T) {
	var c Constraints
	err := json.Unmarshal([]byte(`{
		"budget_min": 10,
		"brand": null,
		"features": ["waterproof"],
		"color": "blue",
		"nothing": null
	}`), &c)
	require.NoError(t, err)

	require.NotNil(t, c.BudgetMin)
	assert.Equal(t, 10.0, *c.BudgetMin)
	assert.Nil(t, c.Brand)
	assert.Equal(t, []string{"waterproof"}, c.Features)
	assert.Equal(t, map[string]any{"color": "blue"}, c.Other)

	assert.Equal(t, map[string]any{
		"budget_min": 10.0,
		"features":   []string{"waterproof"},
		"color":      "blue",
	}, c.AsMap())
}

func TestConstraints_UnmarshalLenientKnownKeys(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "numeric strings",
			in:   `{"budget_min":"10","budget_max":" $100 ","min_rating":"4.5"}`,
			want: map[string]any{"budget_min": 10.0, "budget_max": 100.0, "min_rating": 4.5},
		},
		{
			name: "bool string",
			in:   `{"in_stock":"true"}`,
			want: map[string]any{"in_stock": true},
		},
		{
			name: "bare string lists",
			in:   `{"features":"wireless","exclude_ingredients":["parabens", 7]}`,
			want: map[string]any{"features": []string{"wireless"}, "exclude_ingredients": []string{"parabens"}},
		},
		{
			name: "unreadable known values are dropped",
			in:   `{"budget_max":"cheap","brand":42,"in_stock":"maybe","features":{"a":1},"color":"red"}`,
			want: map[string]any{"color": "red"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Constraints
			require.NoError(t, json.Unmarshal([]byte(tt.in), &c))
			assert.Equal(t, tt.want, c.AsMap())
		})
	}
}

func TestConstraints_UnmarshalRejectsNonObject(t *testing.T) {
	var c Constraints
	assert.Error(t, json.Unmarshal([]byte(`["budget_max"]`), &c))
}

func TestConstraints_KnownKeyInOtherIgnored(t *testing.T) {
	c := Constraints{Other: map[string]any{"brand": "shadow"}}
	assert.Empty(t, c.AsMap())
}

func TestConstraints_MarshalMatchesAsMap(t *testing.T) {
	c := Constraints{MinRating: ptr(4.5), Other: map[string]any{"color": "red"}}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"min_rating":4.5,"color":"red"}`, string(data))
}

func TestParseTask(t *testing.T) {
	tests := []struct {
		in      string
		want    Task
		wantErr bool
	}{
		{in: "product_search", want: TaskProductSearch},
		{in: "  Product_Comparison ", want: TaskProductComparison},
		{in: "/recommendation", want: TaskRecommendation},
		{in: "product-question", want: TaskProductQuestion},
		{in: "", wantErr: true},
		{in: "shopping", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTask(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

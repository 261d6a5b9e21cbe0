package pipeline

// validFields is the whitelist of retrievable product fields.
var validFields = []string{
	"title", "brand", "price", "rating", "category",
	"material", "features", "ingredients", "in_stock", "review_count",
}

var validFieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(validFields))
	for _, f := range validFields {
		m[f] = struct{}{}
	}
	return m
}()

// defaultRetrievalFields is what Validate puts in an empty field list.
// Narrower than the fallback plan's list: no brand.
var defaultRetrievalFields = []string{"title", "price", "rating"}

// ValidFields returns the retrievable field whitelist.
func ValidFields() []string {
	return append([]string(nil), validFields...)
}

// IsValidField reports whether name may appear in a plan's retrieval fields.
func IsValidField(name string) bool {
	_, ok := validFieldSet[name]
	return ok
}

// ValidatorOptions tune Validate's repair rules.
type ValidatorOptions struct {
	// KeepEmptyFields leaves the field list empty when whitelist filtering
	// removed every requested field, instead of re-applying the defaults.
	// With it set, validation is no longer idempotent for such plans: a
	// second pass sees the empty list and fills in the defaults.
	KeepEmptyFields bool
}

// Validate repairs plan so that it names at least one source, at least one
// whitelisted retrieval field and a non-nil filter map. It never fails,
// does not modify its argument, and Validate(Validate(p)) == Validate(p).
func Validate(plan RetrievalPlan) RetrievalPlan {
	return ValidateWith(plan, ValidatorOptions{})
}

// ValidateWith is Validate with explicit options.
func ValidateWith(plan RetrievalPlan, opts ValidatorOptions) RetrievalPlan {
	out := plan.Clone()

	if len(out.Sources) == 0 {
		out.Sources = []string{DefaultSource}
	}

	if len(out.RetrievalFields) == 0 {
		out.RetrievalFields = append([]string(nil), defaultRetrievalFields...)
	}

	kept := make([]string, 0, len(out.RetrievalFields))
	for _, f := range out.RetrievalFields {
		if IsValidField(f) {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 && !opts.KeepEmptyFields {
		kept = append(kept, defaultRetrievalFields...)
	}
	out.RetrievalFields = kept

	if out.Filters == nil {
		out.Filters = map[string]any{}
	}
	return out
}

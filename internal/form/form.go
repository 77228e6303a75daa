// Package form holds per-session intake form state and the merge and
// missing-field logic around it.
package form

import (
	"strconv"
	"strings"

	"github.com/vitalink-health/intake/internal/schema"
)

// Form maps category name to field key to value. Every schema category is
// present from construction, so "no data yet" is always an empty map, never
// a missing key.
type Form map[string]map[string]string

// New returns a form with every schema category present and empty.
func New() Form {
	f := make(Form, len(schema.Categories()))
	for _, cat := range schema.Categories() {
		f[cat] = make(map[string]string)
	}
	return f
}

// Merge folds an extraction-result form into f and returns f. The update is
// untrusted: unknown categories and field keys are inert, a category value
// that is not itself a mapping is skipped, and a null value normalizes to
// the empty string (an explicit clear, distinct from never-set). Merge never
// fails.
func (f Form) Merge(update map[string]any) Form {
	for _, cat := range schema.Categories() {
		raw, ok := update[cat]
		if !ok {
			continue
		}
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if f[cat] == nil {
			f[cat] = make(map[string]string)
		}
		for key, val := range fields {
			if !schema.HasField(cat, key) {
				continue
			}
			s, ok := coerce(val)
			if !ok {
				continue
			}
			f[cat][key] = s
		}
	}
	return f
}

// coerce turns a decoded JSON value into a form value. Numbers show up for
// fields like severity and are rendered back to text.
func coerce(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Filled returns only the entries whose value is non-empty after trimming.
// This is the client-facing snapshot view; resolution re-derives filled-ness
// against the schema itself.
func (f Form) Filled() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for cat, fields := range f {
		kept := make(map[string]string)
		for key, val := range fields {
			if strings.TrimSpace(val) != "" {
				kept[key] = val
			}
		}
		out[cat] = kept
	}
	return out
}

// FieldFilled reports whether a field holds a non-blank value.
func (f Form) FieldFilled(category, key string) bool {
	return strings.TrimSpace(f[category][key]) != ""
}

// IsEmptyUpdate reports whether an extraction-result form carries no usable
// value at all, i.e. the turn produced no new information.
func IsEmptyUpdate(update map[string]any) bool {
	for _, raw := range update {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, val := range fields {
			s, ok := coerce(val)
			if ok && strings.TrimSpace(s) != "" {
				return false
			}
		}
	}
	return true
}

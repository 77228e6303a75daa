package form

import "github.com/vitalink-health/intake/internal/schema"

// Target identifies the next field the conversation should ask for.
type Target struct {
	Category string
	Field    string
	Label    string
}

// Resolve returns the next missing field, walking categories in schema
// precedence order and fields in their declared order. A category whose gate
// is unsatisfied is skipped entirely rather than blocking the scan. The
// second return is false when no resolvable field is missing, the terminal
// form-complete state. Resolution is a pure function of the form.
func Resolve(f Form) (Target, bool) {
	return resolve(f, "", "")
}

// ResolveExcluding behaves like Resolve but ignores one field for this pass.
// The stall tracker uses it to look past a field the conversation is stuck
// on.
func ResolveExcluding(f Form, category, field string) (Target, bool) {
	return resolve(f, category, field)
}

func resolve(f Form, skipCategory, skipField string) (Target, bool) {
	for _, cat := range schema.Categories() {
		if gate, ok := schema.GateFor(cat); ok && !f.FieldFilled(gate.Category, gate.Field) {
			continue
		}
		for _, fld := range schema.Fields(cat) {
			if cat == skipCategory && fld.Key == skipField {
				continue
			}
			if !f.FieldFilled(cat, fld.Key) {
				return Target{Category: cat, Field: fld.Key, Label: fld.Label}, true
			}
		}
	}
	return Target{}, false
}

// Missing lists every unfilled field across all categories, gated or not, in
// schema order. The prompt composer uses it to tell the model what is still
// open; resolution order and gating are Resolve's business, not this list's.
func Missing(f Form) []Target {
	var out []Target
	for _, cat := range schema.Categories() {
		for _, fld := range schema.Fields(cat) {
			if !f.FieldFilled(cat, fld.Key) {
				out = append(out, Target{Category: cat, Field: fld.Key, Label: fld.Label})
			}
		}
	}
	return out
}

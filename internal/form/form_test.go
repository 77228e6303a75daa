package form

import (
	"reflect"
	"testing"

	"github.com/vitalink-health/intake/internal/schema"
)

func TestNewHasEveryCategory(t *testing.T) {
	f := New()
	for _, cat := range schema.Categories() {
		if f[cat] == nil {
			t.Errorf("category %q missing from fresh form", cat)
		}
		if len(f[cat]) != 0 {
			t.Errorf("category %q should start empty", cat)
		}
	}
}

func TestMergeSetsValues(t *testing.T) {
	f := New()
	f.Merge(map[string]any{
		"personal": map[string]any{"name": "Nguyễn Văn A"},
		"medical":  map[string]any{"department": "nội tổng quát"},
	})
	if f["personal"]["name"] != "Nguyễn Văn A" {
		t.Errorf("expected name set, got %q", f["personal"]["name"])
	}
	if f["medical"]["department"] != "nội tổng quát" {
		t.Errorf("expected department set, got %q", f["medical"]["department"])
	}
}

func TestMergeNullNormalizesToEmpty(t *testing.T) {
	f := New()
	f.Merge(map[string]any{"personal": map[string]any{"name": "A"}})
	f.Merge(map[string]any{"personal": map[string]any{"name": nil}})
	val, ok := f["personal"]["name"]
	if !ok {
		t.Fatal("explicitly cleared field must stay present")
	}
	if val != "" {
		t.Errorf("expected empty string after null, got %q", val)
	}
}

func TestMergeIgnoresUnknownShapes(t *testing.T) {
	f := New()
	f.Merge(map[string]any{
		"billing":  map[string]any{"card": "1234"},       // unknown category
		"personal": map[string]any{"nickname": "Bé Tư"},  // unknown field
		"medical":  "not a mapping",                      // wrong shape
		"history":  map[string]any{"allergies": "hải sản"},
	})
	if _, ok := f["billing"]; ok {
		t.Error("unknown category must not be created")
	}
	if _, ok := f["personal"]["nickname"]; ok {
		t.Error("unknown field key must be inert")
	}
	if f["history"]["allergies"] != "hải sản" {
		t.Error("valid sibling entries must still merge")
	}
}

func TestMergeCoercesNumbers(t *testing.T) {
	f := New()
	f.Merge(map[string]any{
		"personal":        map[string]any{"symptoms": "đau đầu"},
		"symptom_details": map[string]any{"severity": float64(7)},
	})
	if f["symptom_details"]["severity"] != "7" {
		t.Errorf("expected severity 7, got %q", f["symptom_details"]["severity"])
	}
}

func TestMergeIdempotent(t *testing.T) {
	update := map[string]any{
		"personal": map[string]any{"name": "Trần Thị B", "phone": "0901000000"},
	}
	once := New().Merge(update)
	twice := New().Merge(update).Merge(update)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent: %v vs %v", once, twice)
	}
}

func TestMergeDoesNotClearUnrelatedFields(t *testing.T) {
	f := New()
	f.Merge(map[string]any{"personal": map[string]any{"name": "A", "dob": "01/01/1990"}})
	f.Merge(map[string]any{"personal": map[string]any{"gender": "nữ"}})
	if f["personal"]["name"] != "A" || f["personal"]["dob"] != "01/01/1990" {
		t.Error("fields absent from the update must be left untouched")
	}
}

func TestFilledTrimsWhitespace(t *testing.T) {
	f := New()
	f["personal"]["name"] = "  "
	f["personal"]["phone"] = "0901"
	filled := f.Filled()
	if _, ok := filled["personal"]["name"]; ok {
		t.Error("whitespace-only value should not count as filled")
	}
	if filled["personal"]["phone"] != "0901" {
		t.Error("non-empty value should survive the filter")
	}
}

func TestIsEmptyUpdate(t *testing.T) {
	cases := []struct {
		name   string
		update map[string]any
		want   bool
	}{
		{"nil", nil, true},
		{"empty", map[string]any{}, true},
		{"only nulls", map[string]any{"personal": map[string]any{"name": nil}}, true},
		{"only blanks", map[string]any{"personal": map[string]any{"name": "  "}}, true},
		{"non-mapping category", map[string]any{"personal": "oops"}, true},
		{"has value", map[string]any{"medical": map[string]any{"department": "da liễu"}}, false},
	}
	for _, tc := range cases {
		if got := IsEmptyUpdate(tc.update); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

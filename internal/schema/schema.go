// Package schema is the static catalog of intake form categories and fields.
// It is immutable process-wide and shared read-only by every session.
package schema

import "fmt"

// Category names, in resolution precedence order.
const (
	CategoryPersonal       = "personal"
	CategoryMedical        = "medical"
	CategorySymptomDetails = "symptom_details"
	CategoryHistory        = "history"
	CategoryFamily         = "family"
)

// Field is one form entry: a stable key and the Vietnamese label shown to
// the patient when the field is asked for.
type Field struct {
	Key   string
	Label string
}

// Gate makes a category eligible for resolution only once another field
// holds a non-empty value.
type Gate struct {
	Category string
	Field    string
}

type categoryDef struct {
	name   string
	fields []Field
	gate   *Gate
}

// The symptom-detail fields follow the SOCRATES mnemonic and only make
// sense once the patient has named a symptom, hence the gate.
var catalog = []categoryDef{
	{
		name: CategoryPersonal,
		fields: []Field{
			{"name", "họ tên"},
			{"dob", "ngày sinh"},
			{"gender", "giới tính"},
			{"cccd", "số CCCD"},
			{"province", "tỉnh/thành"},
			{"district", "quận/huyện"},
			{"ward", "xã/phường"},
			{"address", "địa chỉ"},
			{"phone", "số điện thoại"},
			{"symptoms", "triệu chứng"},
		},
	},
	{
		name: CategoryMedical,
		fields: []Field{
			{"department", "chuyên khoa khám"},
			{"insurance", "số thẻ BHYT"},
		},
	},
	{
		name: CategorySymptomDetails,
		gate: &Gate{Category: CategoryPersonal, Field: "symptoms"},
		fields: []Field{
			{"site", "vị trí triệu chứng"},
			{"onset", "thời điểm khởi phát triệu chứng"},
			{"character", "tính chất triệu chứng"},
			{"radiation", "triệu chứng lan tỏa hoặc kèm theo"},
			{"alleviating", "yếu tố làm giảm triệu chứng"},
			{"timing", "thời gian và tần suất triệu chứng"},
			{"exacerbating", "yếu tố làm nặng triệu chứng"},
			{"severity", "mức độ triệu chứng (1-10)"},
		},
	},
	{
		name: CategoryHistory,
		fields: []Field{
			{"chronic_conditions", "bệnh mạn tính đang điều trị"},
			{"medications", "thuốc đang sử dụng"},
			{"allergies", "tiền sử dị ứng"},
			{"surgeries", "tiền sử phẫu thuật"},
		},
	},
	{
		name: CategoryFamily,
		fields: []Field{
			{"family_conditions", "bệnh lý của người thân trong gia đình"},
			{"hereditary", "bệnh di truyền trong gia đình"},
		},
	},
}

var labelIndex map[string]string

func init() {
	if err := validate(); err != nil {
		panic(err)
	}
	labelIndex = make(map[string]string)
	for _, c := range catalog {
		for _, f := range c.fields {
			labelIndex[f.Key] = f.Label
		}
	}
}

// validate enforces the schema's construction invariants: field keys are
// globally unique across categories (the label table would otherwise shadow
// earlier entries) and every field carries a label.
func validate() error {
	seen := make(map[string]string)
	for _, c := range catalog {
		if len(c.fields) == 0 {
			return fmt.Errorf("schema: category %q has no fields", c.name)
		}
		for _, f := range c.fields {
			if f.Key == "" || f.Label == "" {
				return fmt.Errorf("schema: category %q has a field with empty key or label", c.name)
			}
			if prev, ok := seen[f.Key]; ok {
				return fmt.Errorf("schema: field key %q in %q already used in %q", f.Key, c.name, prev)
			}
			seen[f.Key] = c.name
		}
		if c.gate != nil {
			if _, ok := seen[c.gate.Field]; !ok {
				return fmt.Errorf("schema: gate of %q references unknown field %q", c.name, c.gate.Field)
			}
		}
	}
	return nil
}

// Categories returns the category names in precedence order.
func Categories() []string {
	out := make([]string, len(catalog))
	for i, c := range catalog {
		out[i] = c.name
	}
	return out
}

// Fields returns the ordered field list for a category, or nil for a
// category the schema does not know.
func Fields(category string) []Field {
	for _, c := range catalog {
		if c.name == category {
			return c.fields
		}
	}
	return nil
}

// Knows reports whether category is part of the schema.
func Knows(category string) bool {
	return Fields(category) != nil
}

// HasField reports whether key belongs to category.
func HasField(category, key string) bool {
	for _, f := range Fields(category) {
		if f.Key == key {
			return true
		}
	}
	return false
}

// Label returns the label for a field key. An unknown key is a programming
// error (the key tables are built from the same catalog) and panics.
func Label(key string) string {
	l, ok := labelIndex[key]
	if !ok {
		panic(fmt.Sprintf("schema: no label for field key %q", key))
	}
	return l
}

// GateFor returns the gating predicate for a category, if it has one.
func GateFor(category string) (Gate, bool) {
	for _, c := range catalog {
		if c.name == category && c.gate != nil {
			return *c.gate, true
		}
	}
	return Gate{}, false
}

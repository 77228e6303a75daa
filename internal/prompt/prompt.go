// Package prompt renders the instruction string sent to the extraction
// model. The format is a contract with the model: the transcript, the full
// form dump, the filled and missing listings and the target field must all
// be present; the exact wording around them is not load-bearing.
package prompt

import (
	"fmt"
	"strings"

	"github.com/vitalink-health/intake/internal/form"
	"github.com/vitalink-health/intake/internal/schema"
	"github.com/vitalink-health/intake/internal/session"
)

// System is the system message establishing the JSON-only reply contract.
const System = `Bạn là một chatbot hỗ trợ điền form đăng ký khám bệnh tại bệnh viện. ` +
	`Mọi phản hồi của bạn phải là một chuỗi JSON hợp lệ với hai trường: ` +
	`'form' (object chứa thông tin form được cập nhật) và 'reply' (chuỗi chứa câu trả lời tự nhiên bằng tiếng Việt). ` +
	`Ví dụ: {"form": {"personal": {"name": "Nguyễn Văn A"}}, "reply": "Oke, tôi đã ghi họ tên là Nguyễn Văn A."}. ` +
	`Không bao giờ trả về văn bản thông thường ngoài JSON.`

// Fixed worked examples mapping sample input to the expected result shape.
const examples = `Ví dụ:
1. Tin nhắn: 'Tên tôi là Nguyễn Văn A' -> {"form": {"personal": {"name": "Nguyễn Văn A"}}, "reply": "Oke, tôi đã ghi họ tên là Nguyễn Văn A."}
2. Tin nhắn: 'Đau ở trán' -> {"form": {"symptom_details": {"site": "trán"}}, "reply": "Oke, tôi đã ghi vị trí triệu chứng là trán."}
3. Tin nhắn: 'Tôi không biết' -> {"form": {}, "reply": "Cảm ơn bạn. Bạn có thể cho tôi biết thông tin đó không?"}`

// Compose builds the extraction prompt for one turn. target carries the
// field to prioritize; when the resolver found nothing (nil target) the
// variant asks for a confirmation summary instead of extraction.
func Compose(history []session.Message, f form.Form, target *form.Target, userMessage string) string {
	var b strings.Builder

	b.WriteString("Lịch sử chat:\n")
	for _, msg := range history {
		b.WriteString(msg.Sender)
		b.WriteString(": ")
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Người dùng vừa nói: '%s'. ", userMessage)
	fmt.Fprintf(&b, "Dữ liệu hiện tại của form: %s.\n", renderForm(f))
	b.WriteString("Thông tin đã điền:\n")
	b.WriteString(renderFilled(f))
	b.WriteString("\n")
	b.WriteString(renderSchema())

	if target == nil {
		b.WriteString("Tất cả các trường đã được điền.\n")
		fmt.Fprintf(&b, "Hãy trả về JSON với 'form' chứa dữ liệu hiện tại và 'reply' là: '%s'.", Confirmation(f))
		return b.String()
	}

	missing := form.Missing(f)
	labels := make([]string, len(missing))
	for i, m := range missing {
		labels[i] = m.Label
	}
	missingStr := "không còn"
	if len(labels) > 0 {
		missingStr = strings.Join(labels, ", ")
	}
	fmt.Fprintf(&b, "Các trường còn thiếu: %s.\n", missingStr)
	fmt.Fprintf(&b,
		"Nhiệm vụ: Phân tích câu của người dùng và trích xuất thông tin để điền vào trường '%s' (thuộc '%s'). ",
		target.Label, target.Category)
	fmt.Fprintf(&b,
		"Nếu không có thông tin cho '%s', trả lời tự nhiên bằng tiếng Việt để yêu cầu người dùng cung cấp. "+
			"Nếu có thông tin, xác nhận tự nhiên, ví dụ: 'Oke, tôi đã ghi %s là ...'. ",
		target.Label, target.Label)
	b.WriteString("Trả về kết quả dạng JSON với 'form' chứa các trường đã điền " +
		"(chỉ cập nhật trường liên quan trong đúng category) và 'reply' chứa câu trả lời tự nhiên bằng tiếng Việt.\n")
	b.WriteString(examples)
	return b.String()
}

// Confirmation renders the full-form summary the model is asked to echo back
// when nothing is missing.
func Confirmation(f form.Form) string {
	var b strings.Builder
	b.WriteString("Hình như mọi thông tin cần thiết đã được điền đầy đủ rồi! Đây là những gì tôi có:\n")
	for _, cat := range schema.Categories() {
		for _, fld := range schema.Fields(cat) {
			fmt.Fprintf(&b, "- %s: %s\n", fld.Label, f[cat][fld.Key])
		}
	}
	b.WriteString("Bạn kiểm tra lại xem đúng hết chưa nhé? Nếu đúng thì nói 'có', còn nếu cần sửa thì cứ bảo tôi!")
	return b.String()
}

// renderSchema lists every category and its fields so the model knows the
// key space it may write into.
func renderSchema() string {
	var b strings.Builder
	b.WriteString("Form đăng ký khám bệnh bao gồm:\n")
	for _, cat := range schema.Categories() {
		fmt.Fprintf(&b, "- %s: ", cat)
		parts := make([]string, 0, len(schema.Fields(cat)))
		for _, fld := range schema.Fields(cat) {
			parts = append(parts, fmt.Sprintf("%s (%s)", fld.Key, fld.Label))
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func renderFilled(f form.Form) string {
	var lines []string
	for _, cat := range schema.Categories() {
		for _, fld := range schema.Fields(cat) {
			if f.FieldFilled(cat, fld.Key) {
				lines = append(lines, fmt.Sprintf("- %s: %s", fld.Label, f[cat][fld.Key]))
			}
		}
	}
	if len(lines) == 0 {
		return "Chưa có thông tin nào được điền."
	}
	return strings.Join(lines, "\n")
}

// renderForm dumps the raw form state in schema order so the dump is stable
// across turns.
func renderForm(f form.Form) string {
	var b strings.Builder
	b.WriteString("{")
	for i, cat := range schema.Categories() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: {", cat)
		for j, fld := range schema.Fields(cat) {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %q", fld.Key, f[cat][fld.Key])
		}
		b.WriteString("}")
	}
	b.WriteString("}")
	return b.String()
}

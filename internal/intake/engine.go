// Package intake is the turn engine: it classifies inbound frames, drives
// the prompt/extract/merge cycle, applies the stall policy and emits the
// outbound events a connection should deliver.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalink-health/intake/internal/events"
	"github.com/vitalink-health/intake/internal/form"
	"github.com/vitalink-health/intake/internal/llm"
	"github.com/vitalink-health/intake/internal/prompt"
	"github.com/vitalink-health/intake/internal/schema"
	"github.com/vitalink-health/intake/internal/session"
)

// Fixed conversational strings, carried from the production prompts.
const (
	greetingFresh     = "Chào bạn! Tôi là chatbot hỗ trợ đăng ký khám bệnh. Bạn cần tôi giúp gì hôm nay?"
	greetingPrefilled = "Chào bạn! Tôi thấy bạn đã điền %s. Bạn muốn tôi giúp gì tiếp theo?"
	apologyReply      = "Đã xảy ra lỗi, vui lòng thử lại."
	skipReply         = "Có vẻ phần %s đang khó trả lời, chúng ta sẽ quay lại sau nhé. Trước mắt, bạn cho tôi biết %s được không?"
	pausedReply       = "Tôi chưa đủ thông tin cho mục này, nhưng chúng ta cứ tiếp tục nhé."
)

// Store persists a session's transcript and form snapshot after every turn.
type Store interface {
	SaveTranscript(ctx context.Context, userID string, history []session.Message, snapshot form.Form) error
}

// inbound is the declared structure of a client frame. Frames that fail to
// parse degrade to chat-kind handling of the raw text.
type inbound struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	UserID  string         `json:"user_id"`
}

// Outbound event shapes. These are the wire contract with the client.
type (
	// TranscriptEvent doubles as the greeting and the transcript broadcast;
	// Tests rides along on out-of-band test deliveries.
	TranscriptEvent struct {
		UserID      string            `json:"user_id"`
		ChatHistory []session.Message `json:"chat_history"`
		Tests       []string          `json:"tests,omitempty"`
	}
	FormEvent struct {
		Form map[string]map[string]string `json:"form"`
	}
	TurnEvent struct {
		Form  form.Form `json:"form"`
		Reply string    `json:"reply"`
	}
	TransitionEvent struct {
		Type     string `json:"type"`
		Category string `json:"category"`
	}
	ErrorEvent struct {
		Reply string `json:"reply"`
	}
)

// Engine coordinates one turn at a time for a session. The NATS client is
// optional, same as the store in tests; nil disables that collaborator.
type Engine struct {
	llm    llm.Extractor
	store  Store
	events *events.Client
	logger *slog.Logger
}

func New(extractor llm.Extractor, store Store, bus *events.Client, logger *slog.Logger) *Engine {
	return &Engine{llm: extractor, store: store, events: bus, logger: logger}
}

// HandleMessage processes one inbound frame for a session. send delivers
// outbound events to the owning connection; it must not block. The session
// lock is held for the whole turn, collaborator calls included, so a
// concurrent out-of-band delivery never sees partial state.
func (e *Engine) HandleMessage(ctx context.Context, s *session.Session, raw string, send func(any)) {
	s.Lock()
	defer s.Unlock()

	if s.DropDuplicate(raw) {
		e.logger.Debug("dropped duplicate frame", "user_id", s.ID)
		return
	}

	var msg inbound
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// Not structured data: treat the raw text as a chat message.
		e.chatTurn(ctx, s, raw, "", send)
		return
	}

	switch msg.Type {
	case "init":
		e.initSession(ctx, s, send)
	case "formUpdate":
		e.formUpdate(s, msg.Data, send)
	default:
		text := msg.Message
		if text == "" {
			text = raw
		}
		e.chatTurn(ctx, s, text, msg.UserID, send)
	}
}

// initSession assigns an identifier and greets, listing any pre-filled
// fields. Repeated init frames on an established session are ignored.
func (e *Engine) initSession(ctx context.Context, s *session.Session, send func(any)) {
	if s.ID != "" {
		return
	}
	s.ID = uuid.NewString()

	greeting := greetingFresh
	if parts := filledSummary(s.Form); len(parts) > 0 {
		greeting = fmt.Sprintf(greetingPrefilled, strings.Join(parts, ", "))
	}
	s.Append(greeting, session.SenderBot)
	send(TranscriptEvent{UserID: s.ID, ChatHistory: s.History()})
	e.persist(ctx, s)
}

// formUpdate merges a raw client-pushed form directly, no model call and no
// transcript entry, and echoes the filtered view back.
func (e *Engine) formUpdate(s *session.Session, data map[string]any, send func(any)) {
	s.Form.Merge(data)
	send(FormEvent{Form: s.Form.Filled()})
}

// chatTurn is the main path: append, prompt, extract, merge, stall policy,
// reply.
func (e *Engine) chatTurn(ctx context.Context, s *session.Session, text, claimedID string, send func(any)) {
	if s.ID == "" {
		if claimedID != "" {
			s.ID = claimedID
		} else {
			s.ID = uuid.NewString()
		}
	}

	s.Append(text, session.SenderUser)
	send(TranscriptEvent{UserID: s.ID, ChatHistory: s.History()})

	prevCategory := ""
	if c, ok := s.Cursor(); ok {
		prevCategory = c.Category
	}

	// The turn's target is the pending ask if it is still open (a stall skip
	// moves it off the first missing field), otherwise a fresh resolution,
	// which becomes the pending ask.
	var target *form.Target
	if c, ok := s.Cursor(); ok && !s.Form.FieldFilled(c.Category, c.Field) {
		target = &form.Target{Category: c.Category, Field: c.Field, Label: schema.Label(c.Field)}
	} else if t, ok := form.Resolve(s.Form); ok {
		target = &t
	}
	p := prompt.Compose(s.History(), s.Form, target, text)

	result, err := e.llm.Extract(ctx, p)
	if err != nil {
		// Turn aborted: the user's entry stays in the transcript, nothing
		// else mutates, and the client gets the fixed apology.
		e.logger.Error("extraction turn failed", "user_id", s.ID, "error", err)
		send(ErrorEvent{Reply: apologyReply})
		return
	}

	// The target was actually asked; it is now the pending question.
	if target != nil {
		s.SetCursor(target.Category, target.Field)
	}

	empty := form.IsEmptyUpdate(result.Form)
	s.Form.Merge(result.Form)

	pending := false
	if c, ok := s.Cursor(); ok {
		pending = !s.Form.FieldFilled(c.Category, c.Field)
	}

	reply := result.Reply
	if s.Stall.Observe(empty, pending) {
		stuck, _ := s.Cursor()
		if alt, ok := form.ResolveExcluding(s.Form, stuck.Category, stuck.Field); ok {
			reply = fmt.Sprintf(skipReply, schema.Label(stuck.Field), alt.Label)
			s.SetCursor(alt.Category, alt.Field)
			e.logger.Info("stall skip", "user_id", s.ID, "stuck", stuck.Field, "next", alt.Field)
		} else {
			reply = pausedReply
			s.ClearCursor()
			e.logger.Info("stall pause", "user_id", s.ID, "stuck", stuck.Field)
		}
	} else if !empty {
		// Progress was made; a different field is now the pending question.
		if next, ok := form.Resolve(s.Form); ok {
			s.SetCursor(next.Category, next.Field)
		} else {
			s.ClearCursor()
			if s.MarkCompleted() {
				e.announceCompletion(s)
			}
		}
	}

	s.Append(reply, session.SenderBot)
	send(TurnEvent{Form: s.Form, Reply: reply})
	if c, ok := s.Cursor(); ok && c.Category != prevCategory {
		send(TransitionEvent{Type: "next", Category: c.Category})
	}
	e.persist(ctx, s)
}

// DeliverTests appends an out-of-band recommendation message to a live
// session and pushes it with the test list attached.
func (e *Engine) DeliverTests(ctx context.Context, s *session.Session, send func(any), symptoms string, tests []string) {
	s.Lock()
	defer s.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Dựa trên triệu chứng '%s', tôi đề xuất các xét nghiệm sau:\n", symptoms)
	for _, test := range tests {
		fmt.Fprintf(&b, "- %s\n", test)
	}
	b.WriteString("Bạn muốn tôi giải thích thêm về xét nghiệm nào không?")

	s.Append(b.String(), session.SenderBot)
	send(TranscriptEvent{UserID: s.ID, ChatHistory: s.History(), Tests: tests})
	e.persist(ctx, s)
}

// SessionClosed publishes the closure event for a torn-down connection.
func (e *Engine) SessionClosed(s *session.Session) {
	if e.events == nil || s.ID == "" {
		return
	}
	if err := e.events.PublishSessionClosed(s.ID, len(s.Transcript)); err != nil {
		e.logger.Warn("failed to publish session closed", "user_id", s.ID, "error", err)
	}
}

func (e *Engine) announceCompletion(s *session.Session) {
	e.logger.Info("form complete", "user_id", s.ID)
	if e.events == nil {
		return
	}
	if err := e.events.PublishFormCompleted(s.ID, s.Form.Filled()); err != nil {
		e.logger.Warn("failed to publish form completed", "user_id", s.ID, "error", err)
	}
}

// persist flushes transcript and snapshot. Storage failures are logged and
// never stall the live conversation.
func (e *Engine) persist(ctx context.Context, s *session.Session) {
	if e.store == nil || s.ID == "" {
		return
	}
	if err := e.store.SaveTranscript(ctx, s.ID, s.History(), s.Form); err != nil {
		e.logger.Warn("failed to persist transcript", "user_id", s.ID, "error", err)
	}
}

func filledSummary(f form.Form) []string {
	var parts []string
	for _, cat := range schema.Categories() {
		for _, fld := range schema.Fields(cat) {
			if f.FieldFilled(cat, fld.Key) {
				parts = append(parts, fmt.Sprintf("%s: %s", fld.Label, f[cat][fld.Key]))
			}
		}
	}
	return parts
}

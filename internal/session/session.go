// Package session owns the per-conversation state: the form, the transcript,
// the ask cursor and the stall tracker. Nothing here is shared across
// sessions.
package session

import (
	"sync"

	"github.com/vitalink-health/intake/internal/form"
)

// Transcript senders.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is one transcript entry. The JSON shape is part of the client
// contract.
type Message struct {
	Text   string `json:"message"`
	Sender string `json:"sender"`
}

// Cursor records the field the bot most recently asked for.
type Cursor struct {
	Category string
	Field    string
}

// Session is the owning record for one conversation. A session is
// single-writer: the connection's read loop drives turns one at a time, and
// out-of-band deliveries (test submissions) take the same lock, so no turn
// ever observes partially-updated state.
type Session struct {
	mu sync.Mutex

	ID         string
	Form       form.Form
	Transcript []Message
	Stall      Tracker

	cursor      *Cursor
	lastInbound string
	announced   bool
}

// New returns an uninitialized session; the ID is assigned on the first
// init or chat message.
func New(stallThreshold int) *Session {
	return &Session{
		Form:  form.New(),
		Stall: Tracker{Threshold: stallThreshold},
	}
}

// Lock serializes a turn against out-of-band writers for the same session.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds one transcript entry.
func (s *Session) Append(text, sender string) {
	s.Transcript = append(s.Transcript, Message{Text: text, Sender: sender})
}

// History returns a copy of the transcript safe to hand to encoders.
func (s *Session) History() []Message {
	out := make([]Message, len(s.Transcript))
	copy(out, s.Transcript)
	return out
}

// Cursor returns the pending ask target, if any.
func (s *Session) Cursor() (Cursor, bool) {
	if s.cursor == nil {
		return Cursor{}, false
	}
	return *s.cursor, true
}

func (s *Session) SetCursor(category, field string) {
	s.cursor = &Cursor{Category: category, Field: field}
}

// ClearCursor marks the conversation as having no pending ask; the form is
// either complete or paused.
func (s *Session) ClearCursor() {
	s.cursor = nil
}

// DropDuplicate reports whether raw is identical to the previous inbound
// frame and should be dropped, recording raw either way. Flaky transports
// redeliver frames; reprocessing one would double transcript entries and
// model calls.
func (s *Session) DropDuplicate(raw string) bool {
	if raw == s.lastInbound {
		return true
	}
	s.lastInbound = raw
	return false
}

// MarkCompleted reports whether this is the first time the session reached
// the form-complete state, so completion events fire once.
func (s *Session) MarkCompleted() bool {
	if s.announced {
		return false
	}
	s.announced = true
	return true
}

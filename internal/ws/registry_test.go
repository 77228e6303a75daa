package ws

import (
	"io"
	"log/slog"
	"testing"

	"github.com/vitalink-health/intake/internal/session"
)

func testClient(id string) *client {
	s := session.New(3)
	s.ID = id
	return &client{
		sess:   s,
		out:    make(chan any, 4),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	c := testClient("user-1")
	r.add("user-1", c)

	sess, send, ok := r.Lookup("user-1")
	if !ok {
		t.Fatal("expected to find user-1")
	}
	if sess.ID != "user-1" {
		t.Errorf("wrong session %q", sess.ID)
	}
	send("hello")
	if got := <-c.out; got != "hello" {
		t.Errorf("enqueue delivered %v", got)
	}

	if _, _, ok := r.Lookup("user-2"); ok {
		t.Error("unknown user must not resolve")
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}
}

func TestRegistryRemoveOnlyOwnEntry(t *testing.T) {
	r := NewRegistry()
	old := testClient("user-1")
	r.add("user-1", old)

	// A reconnect replaces the entry; the stale connection's teardown must
	// not evict the new one.
	fresh := testClient("user-1")
	r.add("user-1", fresh)
	r.remove("user-1", old)

	if _, _, ok := r.Lookup("user-1"); !ok {
		t.Fatal("replacement entry should survive the stale removal")
	}
	r.remove("user-1", fresh)
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := testClient("user-1")
	for i := 0; i < cap(c.out)+2; i++ {
		c.enqueue(i) // must not block
	}
	if len(c.out) != cap(c.out) {
		t.Errorf("expected a full buffer, got %d", len(c.out))
	}
}

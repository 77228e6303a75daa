package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vitalink-health/intake/internal/intake"
	"github.com/vitalink-health/intake/internal/llm"
	"github.com/vitalink-health/intake/internal/session"
	"github.com/vitalink-health/intake/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHistory struct {
	transcripts map[string][]session.Message
}

func (f *fakeHistory) GetTranscript(_ context.Context, userID string) ([]session.Message, error) {
	h, ok := f.transcripts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return h, nil
}

type fakeDirectory struct {
	sessions map[string]*session.Session
	sent     []any
}

func (f *fakeDirectory) Lookup(userID string) (*session.Session, func(any), bool) {
	s, ok := f.sessions[userID]
	if !ok {
		return nil, nil, false
	}
	return s, func(v any) { f.sent = append(f.sent, v) }, true
}

func (f *fakeDirectory) Count() int { return len(f.sessions) }

type fixedRecommender struct {
	tests []string
}

func (f *fixedRecommender) Recommend(_ context.Context, _ string) ([]string, error) {
	return f.tests, nil
}

func testServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	if deps.Engine == nil {
		deps.Engine = intake.New(&llm.Fake{}, nil, nil, deps.Logger)
	}
	if deps.Registry == nil {
		deps.Registry = &fakeDirectory{}
	}
	return NewServer(8080, "", deps)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(Deps{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	dir := &fakeDirectory{sessions: map[string]*session.Session{"u1": session.New(3)}}
	srv := testServer(Deps{Registry: dir})

	req := httptest.NewRequest("GET", "/api/v1/intake/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["service"] != "intake" {
		t.Errorf("expected service intake, got %v", body["service"])
	}
	if body["sessions"] != float64(1) {
		t.Errorf("expected 1 session, got %v", body["sessions"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	history := &fakeHistory{transcripts: map[string][]session.Message{
		"u1": {{Text: "Chào bạn!", Sender: session.SenderBot}},
	}}
	srv := testServer(Deps{History: history})

	req := httptest.NewRequest("GET", "/api/history/u1", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		UserID      string            `json:"user_id"`
		ChatHistory []session.Message `json:"chat_history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.UserID != "u1" || len(body.ChatHistory) != 1 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHistoryNotFound(t *testing.T) {
	srv := testServer(Deps{History: &fakeHistory{}})

	req := httptest.NewRequest("GET", "/api/history/ghost", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSubmitTestsDeliversToLiveSession(t *testing.T) {
	sess := session.New(3)
	sess.ID = "u1"
	dir := &fakeDirectory{sessions: map[string]*session.Session{"u1": sess}}
	srv := testServer(Deps{
		Registry:    dir,
		Recommender: &fixedRecommender{tests: []string{"Chụp CT sọ não"}},
	})

	req := httptest.NewRequest("POST", "/api/submit_tests",
		strings.NewReader(`{"user_id":"u1","symptoms":"đau đầu"}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		UserID string   `json:"user_id"`
		Tests  []string `json:"tests"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Tests) != 1 || body.Tests[0] != "Chụp CT sọ não" {
		t.Errorf("unexpected tests %v", body.Tests)
	}
	if len(sess.Transcript) != 1 {
		t.Errorf("expected the recommendation appended to the transcript, got %d entries", len(sess.Transcript))
	}
	if len(dir.sent) != 1 {
		t.Errorf("expected one event pushed to the connection, got %d", len(dir.sent))
	}
}

func TestSubmitTestsUnknownSession(t *testing.T) {
	srv := testServer(Deps{
		Recommender: &fixedRecommender{tests: []string{"X"}},
	})

	req := httptest.NewRequest("POST", "/api/submit_tests",
		strings.NewReader(`{"user_id":"ghost","symptoms":"ho"}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestSubmitTestsValidation(t *testing.T) {
	srv := testServer(Deps{Recommender: &fixedRecommender{}})

	for _, payload := range []string{
		`not json`,
		`{"user_id":"","symptoms":"ho"}`,
		`{"user_id":"u1","symptoms":"  "}`,
	} {
		req := httptest.NewRequest("POST", "/api/submit_tests", strings.NewReader(payload))
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %q: expected 400, got %d", payload, w.Code)
		}
	}
}

func TestSubmitTestsLookupNotConfigured(t *testing.T) {
	sess := session.New(3)
	sess.ID = "u1"
	srv := testServer(Deps{
		Registry: &fakeDirectory{sessions: map[string]*session.Session{"u1": sess}},
	})

	req := httptest.NewRequest("POST", "/api/submit_tests",
		strings.NewReader(`{"user_id":"u1","symptoms":"ho"}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a recommender, got %d", w.Code)
	}
}

func TestSeedCatalogRequiresToken(t *testing.T) {
	srv := NewServer(8080, "secret", Deps{Logger: discardLogger(), Registry: &fakeDirectory{}})

	req := httptest.NewRequest("POST", "/api/v1/catalog/seed", strings.NewReader(`[]`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/catalog/seed", strings.NewReader(`[]`))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	// Authorized but seeding is not configured.
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with no embedder, got %d", w.Code)
	}
}

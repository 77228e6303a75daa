// Package api exposes the HTTP surface: health, status, transcript history,
// test submission and catalog seeding, plus the websocket chat mount.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vitalink-health/intake/internal/intake"
	"github.com/vitalink-health/intake/internal/lookup"
	"github.com/vitalink-health/intake/internal/session"
	"github.com/vitalink-health/intake/internal/store"
)

// HistoryStore reads stored transcripts.
type HistoryStore interface {
	GetTranscript(ctx context.Context, userID string) ([]session.Message, error)
}

// Recommender produces the ordered test list for a symptom description.
type Recommender interface {
	Recommend(ctx context.Context, symptoms string) ([]string, error)
}

// Directory resolves live sessions for out-of-band delivery.
type Directory interface {
	Lookup(userID string) (*session.Session, func(any), bool)
	Count() int
}

// CatalogSeeder upserts embedded catalog entries.
type CatalogSeeder interface {
	Seed(ctx context.Context, entry lookup.TestEntry, embedding []float64) error
}

// Deps carries the server's collaborators. Recommender, Embedder and
// Catalog may be nil when the lookup pipeline is not configured; the
// related endpoints then answer 503.
type Deps struct {
	Engine      *intake.Engine
	Registry    Directory
	History     HistoryStore
	Recommender Recommender
	Embedder    lookup.Embedder
	Catalog     CatalogSeeder
	Chat        http.HandlerFunc
	Logger      *slog.Logger
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{router: router, port: port, deps: deps}

	router.Get("/health", s.health)
	router.Get("/api/v1/intake/status", s.status)
	router.Get("/api/history/{user_id}", s.history)
	router.Post("/api/submit_tests", s.submitTests)
	router.Route("/api/v1/catalog", func(r chi.Router) {
		r.Use(bearerAuth(apiToken))
		r.Post("/seed", s.seedCatalog)
	})
	if deps.Chat != nil {
		router.HandleFunc("/api/chat", deps.Chat)
	}

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.deps.Logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	if s.deps.Registry != nil {
		sessions = s.deps.Registry.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "intake",
		"status":   "ok",
		"sessions": sessions,
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	history, err := s.deps.History.GetTranscript(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Không tìm thấy lịch sử chat cho user_id này.",
		})
		return
	}
	if err != nil {
		s.deps.Logger.Error("history read failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      userID,
		"chat_history": history,
	})
}

// SubmitRequest is the payload for POST /api/submit_tests: an external form
// submission naming the session it belongs to.
type SubmitRequest struct {
	UserID   string `json:"user_id"`
	Symptoms string `json:"symptoms"`
}

func (s *Server) submitTests(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Symptoms) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and symptoms are required"})
		return
	}
	if s.deps.Recommender == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "test lookup is not configured"})
		return
	}

	sess, send, ok := s.deps.Registry.Lookup(req.UserID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Không tìm thấy kết nối WebSocket cho user_id này.",
		})
		return
	}

	tests, err := s.deps.Recommender.Recommend(r.Context(), req.Symptoms)
	if err != nil {
		s.deps.Logger.Error("test lookup failed", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "test lookup failed"})
		return
	}

	s.deps.Engine.DeliverTests(r.Context(), sess, send, req.Symptoms, tests)
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": req.UserID,
		"tests":   tests,
	})
}

// SeedEntry is one catalog row to embed and upsert.
type SeedEntry struct {
	TestName          string `json:"test_name"`
	Symptoms          string `json:"symptoms"`
	Contraindications string `json:"contraindications"`
}

func (s *Server) seedCatalog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Embedder == nil || s.deps.Catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "catalog seeding is not configured"})
		return
	}
	var entries []SeedEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	seeded := 0
	for _, entry := range entries {
		if entry.TestName == "" {
			continue
		}
		embedding, err := s.deps.Embedder.Embed(r.Context(), entry.Symptoms)
		if err != nil {
			s.deps.Logger.Error("seed embedding failed", "test", entry.TestName, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "embedding failed"})
			return
		}
		err = s.deps.Catalog.Seed(r.Context(), lookup.TestEntry{
			Name:              entry.TestName,
			Symptoms:          entry.Symptoms,
			Contraindications: entry.Contraindications,
		}, embedding)
		if err != nil {
			s.deps.Logger.Error("seed upsert failed", "test", entry.TestName, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "seed failed"})
			return
		}
		seeded++
	}
	writeJSON(w, http.StatusOK, map[string]int{"seeded": seeded})
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, `{"error":"admin API disabled"}`, http.StatusForbidden)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

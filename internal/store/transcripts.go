package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vitalink-health/intake/internal/form"
	"github.com/vitalink-health/intake/internal/session"
)

// SaveTranscript upserts the full transcript and form snapshot for a
// session. It is called after every turn, not only at teardown, because the
// transport may drop without a clean close.
func (s *Store) SaveTranscript(ctx context.Context, userID string, history []session.Message, snapshot form.Form) error {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	formJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_transcripts (user_id, history, form, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id)
		DO UPDATE SET history = EXCLUDED.history, form = EXCLUDED.form, updated_at = now()`,
		userID, historyJSON, formJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

// GetTranscript returns the stored transcript for a session id, or
// ErrNotFound.
func (s *Store) GetTranscript(ctx context.Context, userID string) ([]session.Message, error) {
	var historyJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT history FROM chat_transcripts WHERE user_id = $1`, userID,
	).Scan(&historyJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}

	var history []session.Message
	if err := json.Unmarshal(historyJSON, &history); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return history, nil
}

package lookup

import (
	"context"
	"fmt"
	"time"

	genai "google.golang.org/genai"
)

// Embedder turns a symptom description into a vector for catalog search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GeminiEmbedder wraps the official genai client. Embedding requests hit
// quota limits under load, so calls retry with exponential backoff.
type GeminiEmbedder struct {
	cli     *genai.Client
	model   string
	retries int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiEmbedder{cli: cli, model: model, retries: 5}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}
		resp, err := g.cli.Models.EmbedContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
			&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"},
		)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			lastErr = fmt.Errorf("embed content: empty embedding")
			continue
		}
		values := resp.Embeddings[0].Values
		out := make([]float64, len(values))
		for i, v := range values {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("embed content after %d attempts: %w", g.retries, lastErr)
}

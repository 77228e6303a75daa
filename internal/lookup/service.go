// Package lookup recommends medical tests for a symptom description:
// embedding, vector search over the catalog, then an LLM pass that keeps
// only the tests actually warranted.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const rankSystem = "Bạn là một chatbot trợ giúp điền form đăng ký khám bệnh tại bệnh viện."

const rankPromptFormat = `Dựa trên triệu chứng của người dùng: "%s", hãy đánh giá danh sách xét nghiệm dưới đây.
Trả về tất cả các xét nghiệm thực sự cần thiết và phù hợp dựa trên triệu chứng, loại bỏ những xét nghiệm không liên quan hoặc ít khả năng.
Sử dụng thông tin về triệu chứng liên quan (Symptoms) và chống chỉ định (Contraindications) để đưa ra quyết định.
Nếu cần nhiều hơn 5 xét nghiệm để đánh giá đầy đủ, hãy bao gồm tất cả.
Trả về danh sách ngắn gọn, mỗi dòng là tên xét nghiệm.

Danh sách xét nghiệm:
%s

Định dạng trả về:
- Tên xét nghiệm 1
- Tên xét nghiệm 2
...`

// Searcher is the catalog lookup the service needs.
type Searcher interface {
	Search(ctx context.Context, embedding []float64, limit int) ([]TestEntry, error)
}

// Ranker is the completion call used to prune the candidate list.
type Ranker interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type Service struct {
	embedder Embedder
	catalog  Searcher
	ranker   Ranker
	logger   *slog.Logger

	// ScoreThreshold drops weak vector matches before ranking; SearchLimit
	// caps the candidate list.
	ScoreThreshold float64
	SearchLimit    int
}

func NewService(embedder Embedder, catalog Searcher, ranker Ranker, logger *slog.Logger) *Service {
	return &Service{
		embedder:       embedder,
		catalog:        catalog,
		ranker:         ranker,
		logger:         logger,
		ScoreThreshold: 0.84,
		SearchLimit:    10,
	}
}

// Recommend returns the ordered test names for a symptom description.
func (s *Service) Recommend(ctx context.Context, symptoms string) ([]string, error) {
	embedding, err := s.embedder.Embed(ctx, symptoms)
	if err != nil {
		return nil, fmt.Errorf("embed symptoms: %w", err)
	}

	candidates, err := s.catalog.Search(ctx, embedding, s.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score > s.ScoreThreshold {
			kept = append(kept, c)
		}
	}
	s.logger.Info("catalog candidates", "total", len(candidates), "above_threshold", len(kept))
	if len(kept) == 0 {
		return nil, nil
	}

	var list strings.Builder
	for _, c := range kept {
		fmt.Fprintf(&list, "- %s (Symptoms: %s; Contraindications: %s)\n",
			c.Name, c.Symptoms, c.Contraindications)
	}

	raw, err := s.ranker.Complete(ctx, rankSystem, fmt.Sprintf(rankPromptFormat, symptoms, list.String()))
	if err != nil {
		return nil, fmt.Errorf("rank tests: %w", err)
	}
	return ParseTestList(raw), nil
}

// ParseTestList extracts test names from the ranker's "- name" lines,
// tolerating bare lines and blank padding.
func ParseTestList(raw string) []string {
	var tests []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimSpace(line)
		if line != "" {
			tests = append(tests, line)
		}
	}
	return tests
}

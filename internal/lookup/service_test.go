package lookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	vec []float64
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return f.vec, f.err
}

type fakeCatalog struct {
	entries []TestEntry
	err     error
}

func (f *fakeCatalog) Search(_ context.Context, _ []float64, _ int) ([]TestEntry, error) {
	return f.entries, f.err
}

type fakeRanker struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeRanker) Complete(_ context.Context, _ string, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	return f.reply, f.err
}

func TestRecommendFiltersAndRanks(t *testing.T) {
	catalog := &fakeCatalog{entries: []TestEntry{
		{Name: "Chụp CT sọ não", Symptoms: "đau đầu", Contraindications: "mang thai", Score: 0.91},
		{Name: "Nội soi dạ dày", Symptoms: "đau bụng", Contraindications: "", Score: 0.62},
		{Name: "Xét nghiệm máu", Symptoms: "sốt, đau đầu", Contraindications: "", Score: 0.88},
	}}
	ranker := &fakeRanker{reply: "- Chụp CT sọ não\n- Xét nghiệm máu\n"}
	svc := NewService(&fakeEmbedder{vec: []float64{0.1, 0.2}}, catalog, ranker, discardLogger())

	tests, err := svc.Recommend(context.Background(), "đau đầu dữ dội")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tests) != 2 || tests[0] != "Chụp CT sọ não" || tests[1] != "Xét nghiệm máu" {
		t.Errorf("unexpected recommendations: %v", tests)
	}

	// The weak match must not reach the ranker.
	if len(ranker.prompts) != 1 {
		t.Fatalf("expected one rank call, got %d", len(ranker.prompts))
	}
	if strings.Contains(ranker.prompts[0], "Nội soi dạ dày") {
		t.Error("below-threshold candidate leaked into the rank prompt")
	}
	if !strings.Contains(ranker.prompts[0], "đau đầu dữ dội") {
		t.Error("rank prompt should carry the symptom description")
	}
}

func TestRecommendNoCandidatesAboveThreshold(t *testing.T) {
	catalog := &fakeCatalog{entries: []TestEntry{{Name: "X", Score: 0.2}}}
	ranker := &fakeRanker{reply: "should not be called"}
	svc := NewService(&fakeEmbedder{vec: []float64{0.1}}, catalog, ranker, discardLogger())

	tests, err := svc.Recommend(context.Background(), "mệt mỏi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tests != nil {
		t.Errorf("expected no recommendations, got %v", tests)
	}
	if len(ranker.prompts) != 0 {
		t.Error("ranker must not run with an empty candidate list")
	}
}

func TestRecommendEmbedFailure(t *testing.T) {
	svc := NewService(&fakeEmbedder{err: errors.New("quota")}, &fakeCatalog{}, &fakeRanker{}, discardLogger())
	if _, err := svc.Recommend(context.Background(), "ho"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestParseTestList(t *testing.T) {
	raw := "- Chụp X quang ngực\n\n- Đo chức năng hô hấp  \nCấy đờm\n"
	tests := ParseTestList(raw)
	want := []string{"Chụp X quang ngực", "Đo chức năng hô hấp", "Cấy đờm"}
	if len(tests) != len(want) {
		t.Fatalf("expected %d tests, got %v", len(want), tests)
	}
	for i := range want {
		if tests[i] != want[i] {
			t.Errorf("test %d: expected %q, got %q", i, want[i], tests[i])
		}
	}
}

func TestPgVectorFormat(t *testing.T) {
	got := pgVector([]float64{0.1, -0.25, 3})
	if got != "[0.1,-0.25,3]" {
		t.Errorf("unexpected vector literal %q", got)
	}
}

package quiz

import (
	"context"
	"errors"
	"math"
	"testing"

	"eduquiz-platform/models"
)

// mapEmbedder returns a fixed vector per text, failing on unknown texts.
type mapEmbedder struct {
	vectors map[string][]float32
}

func (m *mapEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	v, ok := m.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func saQuestion(text string) models.QuizQuestion {
	return models.QuizQuestion{Text: text, Type: models.QuestionShortAnswer}
}

func TestDedupeRejectsNearDuplicateQuestions(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"q1":      {1, 0, 0},
		"q1-copy": {0.99, 0.01, 0}, // cosine ~1 with q1
		"q2":      {0, 1, 0},
	}}
	d := NewDeduplicator(embedder)

	got, err := d.Dedupe(context.Background(),
		[]models.QuizQuestion{saQuestion("q1"), saQuestion("q1-copy"), saQuestion("q2")},
		3, models.QuestionShortAnswer)
	if err != nil {
		t.Fatalf("dedupe error: %v", err)
	}
	if len(got) != 2 || got[0].Text != "q1" || got[1].Text != "q2" {
		t.Fatalf("unexpected survivors: %+v", got)
	}
}

func TestDedupeStopsAtTargetCount(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"q1": {1, 0, 0},
		"q2": {0, 1, 0},
		// q3 deliberately has no vector: it must never be embedded
	}}
	d := NewDeduplicator(embedder)

	got, err := d.Dedupe(context.Background(),
		[]models.QuizQuestion{saQuestion("q1"), saQuestion("q2"), saQuestion("q3")},
		2, models.QuestionShortAnswer)
	if err != nil {
		t.Fatalf("dedupe error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly 2, got %d", len(got))
	}
}

func TestDedupeRejectsDuplicateOptions(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"q1":     {1, 0, 0},
		"q2":     {0, 1, 0},
		"optA":   {0, 0, 1},
		"optB":   {1, 1, 0},
		"optA-2": {0, 0.01, 0.99}, // near-duplicate of optA
		"optC":   {1, 0, 1},
	}}
	d := NewDeduplicator(embedder)

	candidates := []models.QuizQuestion{
		{Text: "q1", Type: models.QuestionMultipleChoice, Options: []string{"optA", "optB"}},
		{Text: "q2", Type: models.QuestionMultipleChoice, Options: []string{"optA-2", "optC"}},
	}
	got, err := d.Dedupe(context.Background(), candidates, 2, models.QuestionMultipleChoice)
	if err != nil {
		t.Fatalf("dedupe error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "q1" {
		t.Fatalf("expected only q1 to survive, got %+v", got)
	}
}

func TestDedupeUnderfillIsNotAnError(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{"q1": {1, 0, 0}}}
	d := NewDeduplicator(embedder)

	got, err := d.Dedupe(context.Background(), []models.QuizQuestion{saQuestion("q1")}, 5, models.QuestionShortAnswer)
	if err != nil {
		t.Fatalf("dedupe error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1, got %d", len(got))
	}
}

func TestDedupeEmbeddingErrorPropagates(t *testing.T) {
	d := NewDeduplicator(&mapEmbedder{vectors: map[string][]float32{}})
	_, err := d.Dedupe(context.Background(), []models.QuizQuestion{saQuestion("q1")}, 1, models.QuestionShortAnswer)
	if err == nil {
		t.Fatal("expected embedding error to propagate")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: got %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("zero vector: got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 1}, []float32{-1, -1}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite vectors: got %v", got)
	}
}

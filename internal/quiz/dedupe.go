package quiz

import (
	"context"
	"math"

	"eduquiz-platform/internal/logger"
	"eduquiz-platform/models"
)

// Similarity thresholds are carried over from the tuned production values;
// tests depend on them.
const (
	questionSimilarityThreshold = 0.90
	optionSimilarityThreshold   = 0.95
)

// QuestionEmbedder embeds question and option texts for duplicate detection.
type QuestionEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// Deduplicator drops generated questions that are semantic near-duplicates of
// already accepted ones.
type Deduplicator struct {
	embedder QuestionEmbedder
}

func NewDeduplicator(embedder QuestionEmbedder) *Deduplicator {
	return &Deduplicator{embedder: embedder}
}

// Dedupe greedily filters candidates in input order until targetCount are
// accepted. A candidate is rejected when its question embedding is too close
// to any accepted question, or (for multiple choice) when any of its option
// embeddings is too close to any accepted option. Running out of candidates
// before reaching targetCount is a warning, never an error.
func (d *Deduplicator) Dedupe(ctx context.Context, candidates []models.QuizQuestion, targetCount int, qType models.QuestionType) ([]models.QuizQuestion, error) {
	var accepted []models.QuizQuestion
	var questionVectors [][]float32
	var optionVectors [][]float32

	for _, candidate := range candidates {
		if len(accepted) >= targetCount {
			break
		}

		vector, err := d.embedder.EmbedDocument(ctx, candidate.Text)
		if err != nil {
			return nil, err
		}

		if tooSimilar(vector, questionVectors, questionSimilarityThreshold) {
			logger.Debug("Rejecting near-duplicate question", "question", candidate.Text)
			continue
		}

		var candidateOptions [][]float32
		if qType == models.QuestionMultipleChoice {
			duplicate := false
			for _, option := range candidate.Options {
				optVector, err := d.embedder.EmbedDocument(ctx, option)
				if err != nil {
					return nil, err
				}
				if tooSimilar(optVector, optionVectors, optionSimilarityThreshold) {
					duplicate = true
					break
				}
				candidateOptions = append(candidateOptions, optVector)
			}
			if duplicate {
				logger.Debug("Rejecting question with near-duplicate option", "question", candidate.Text)
				continue
			}
		}

		accepted = append(accepted, candidate)
		questionVectors = append(questionVectors, vector)
		optionVectors = append(optionVectors, candidateOptions...)
	}

	if len(accepted) < targetCount {
		logger.Warn("Deduplication underfilled the requested question count",
			"produced", len(accepted), "requested", targetCount)
	}
	return accepted, nil
}

func tooSimilar(vector []float32, pool [][]float32, threshold float64) bool {
	for _, other := range pool {
		if CosineSimilarity(vector, other) > threshold {
			return true
		}
	}
	return false
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is 0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ErrEmptyAfterSanitize is returned when sanitization leaves nothing to embed.
var ErrEmptyAfterSanitize = errors.New("text is empty after sanitization")

// EmbeddingClient wraps the Gemini embedding model. Document and query
// embeds use distinct task types so stored chunks and search queries land in
// compatible regions of the vector space.
type EmbeddingClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewEmbeddingClient creates an embedding client. The limiter is shared with
// the generation client when both talk to the same API key; pass nil to skip
// client-side throttling.
func NewEmbeddingClient(ctx context.Context, apiKey, model string, limiter *rate.Limiter) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &EmbeddingClient{client: client, model: model, limiter: limiter}, nil
}

// EmbedDocument embeds text that will be stored for later retrieval.
func (e *EmbeddingClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, genai.TaskTypeRetrievalDocument)
}

// EmbedQuery embeds a search query.
func (e *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, genai.TaskTypeRetrievalQuery)
}

func (e *EmbeddingClient) embed(ctx context.Context, text string, task genai.TaskType) ([]float32, error) {
	clean := SanitizeText(text)
	if clean == "" {
		return nil, ErrEmptyAfterSanitize
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	model := e.client.EmbeddingModel(e.model)
	model.TaskType = task

	resp, err := model.EmbedContent(ctx, genai.Text(clean))
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embedding service: no embedding returned")
	}

	return resp.Embedding.Values, nil
}

// SanitizeText strips bytes the embedding API rejects: invalid UTF-8
// sequences, lone surrogate code points, and the replacement character. All
// whitespace runs collapse to a single space.
func SanitizeText(s string) string {
	valid := strings.ToValidUTF8(s, " ")
	valid = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.Is(unicode.Cs, r) {
			return ' '
		}
		return r
	}, valid)
	return strings.Join(strings.Fields(valid), " ")
}

// Close releases the underlying API client.
func (e *EmbeddingClient) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

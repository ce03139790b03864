package rag

import (
	"context"
	"errors"
	"strings"
)

// ErrNoRelevantContent is returned when a search finds nothing to ground a
// generation on.
var ErrNoRelevantContent = errors.New("no relevant content found")

// Retriever answers a topic query with a context string assembled from the
// best-matching stored chunks.
type Retriever struct {
	embedder Embedder
	store    VectorStore
}

func NewRetriever(embedder Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query, searches the collection, and joins the hit texts
// with newlines. Hits stay in search-rank order so the most relevant material
// leads the prompt; they are deliberately not re-sorted by chunk index.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, topK int) (string, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", err
	}

	hits, err := r.store.Search(ctx, collection, vector, topK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", ErrNoRelevantContent
	}

	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		texts = append(texts, hit.Chunk.Text)
	}
	return strings.Join(texts, "\n"), nil
}

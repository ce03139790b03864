package rag

import (
	"context"
	"fmt"
	"time"

	"eduquiz-platform/internal/vectorstore"
	"eduquiz-platform/models"
)

// Embedder converts text into a fixed-length vector. Document and query modes
// use different task types on the embedding model.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the slice of the store the pipeline and retriever need.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, points []vectorstore.Point) error
	Search(ctx context.Context, name string, queryVector []float32, k int) ([]vectorstore.ScoredChunk, error)
}

// IngestRequest describes one document to be chunked and stored.
type IngestRequest struct {
	Collection   string
	DocumentID   string
	DocumentName string
	StoragePath  string
	Text         string
}

// Pipeline turns a document's extracted text into stored, searchable chunks.
type Pipeline struct {
	embedder  Embedder
	store     VectorStore
	chunkSize int
	overlap   int
}

func NewPipeline(embedder Embedder, store VectorStore, chunkSize, overlap int) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// Ingest chunks, embeds and upserts one document, returning the number of
// chunks stored. All chunks of a document share the upload timestamp captured
// here, and chunk_index follows chunk order. Any embedding failure aborts the
// document before anything is written; the caller retries the whole document.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	uploadedAt := time.Now().UTC().Format(time.RFC3339)

	chunks, err := Chunk(req.Text, p.chunkSize, p.overlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrEmptyInput
	}

	if err := p.store.CreateCollection(ctx, req.Collection); err != nil {
		return 0, err
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := p.embedder.EmbedDocument(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of document %s: %w", i, req.DocumentID, err)
		}
		points = append(points, vectorstore.Point{
			ID:     vectorstore.PointID(req.DocumentID, i),
			Vector: vector,
			Payload: vectorstore.PayloadMap(models.ChunkPayload{
				DocumentID:      req.DocumentID,
				DocumentName:    req.DocumentName,
				StoragePath:     req.StoragePath,
				ChunkIndex:      i,
				Text:            chunk,
				UploadTimestamp: uploadedAt,
			}),
		})
	}

	if err := p.store.Upsert(ctx, req.Collection, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

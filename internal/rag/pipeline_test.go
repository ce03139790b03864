package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"eduquiz-platform/internal/vectorstore"
	"eduquiz-platform/models"
)

func chunkWithText(text string) models.ChunkPayload {
	return models.ChunkPayload{DocumentID: "doc-1", Text: text}
}

type fakeEmbedder struct {
	failOn    string
	documents []string
	queries   []string
}

func (f *fakeEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding failed")
	}
	f.documents = append(f.documents, text)
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return []float32{1, 0, 0}, nil
}

type fakeStore struct {
	created   []string
	upserts   map[string][]vectorstore.Point
	searchOut []vectorstore.ScoredChunk
	searchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: make(map[string][]vectorstore.Point)}
}

func (f *fakeStore) CreateCollection(_ context.Context, name string) error {
	f.created = append(f.created, name)
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, name string, points []vectorstore.Point) error {
	f.upserts[name] = append(f.upserts[name], points...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, _ int) ([]vectorstore.ScoredChunk, error) {
	return f.searchOut, f.searchErr
}

func TestPipelineIngest(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	pipeline := NewPipeline(embedder, store, 50, 10)

	req := IngestRequest{
		Collection:   "u1_notes",
		DocumentID:   "doc-1",
		DocumentName: "notes.pdf",
		StoragePath:  "/storage/doc-1.pdf",
		Text:         strings.Repeat("the quick brown fox jumps over the lazy dog. ", 10),
	}
	count, err := pipeline.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	if count < 2 {
		t.Fatalf("expected multiple chunks, got %d", count)
	}
	if len(store.created) != 1 || store.created[0] != "u1_notes" {
		t.Fatalf("collection not created: %#v", store.created)
	}

	points := store.upserts["u1_notes"]
	if len(points) != count {
		t.Fatalf("expected %d points, got %d", count, len(points))
	}

	timestamp := points[0].Payload["upload_timestamp"]
	for i, p := range points {
		if p.Payload["document_id"] != "doc-1" {
			t.Errorf("point %d has wrong document_id", i)
		}
		if p.Payload["chunk_index"] != i {
			t.Errorf("point %d has chunk_index %v", i, p.Payload["chunk_index"])
		}
		if p.Payload["upload_timestamp"] != timestamp {
			t.Errorf("point %d has a different timestamp", i)
		}
	}
}

func TestPipelineIngestDeterministicIDs(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	pipeline := NewPipeline(embedder, store, 50, 10)

	req := IngestRequest{Collection: "c", DocumentID: "doc-1", Text: "some study material about thermodynamics"}
	if _, err := pipeline.Ingest(context.Background(), req); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := pipeline.Ingest(context.Background(), req); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	points := store.upserts["c"]
	if len(points) != 2 {
		t.Fatalf("expected 2 upserted points, got %d", len(points))
	}
	if points[0].ID != points[1].ID {
		t.Fatalf("re-ingestion produced a different point id: %v vs %v", points[0].ID, points[1].ID)
	}
}

func TestPipelineIngestEmbedFailureAbortsDocument(t *testing.T) {
	embedder := &fakeEmbedder{failOn: "fox"}
	store := newFakeStore()
	pipeline := NewPipeline(embedder, store, 1000, 0)

	_, err := pipeline.Ingest(context.Background(), IngestRequest{
		Collection: "c",
		DocumentID: "doc-1",
		Text:       "the quick brown fox",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.upserts["c"]) != 0 {
		t.Fatal("nothing should be written when embedding fails")
	}
}

func TestRetrieveJoinsHitsInRankOrder(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	store.searchOut = []vectorstore.ScoredChunk{
		{Score: 0.9, Chunk: chunkWithText("most relevant")},
		{Score: 0.5, Chunk: chunkWithText("less relevant")},
	}

	got, err := NewRetriever(embedder, store).Retrieve(context.Background(), "c", "entropy", 5)
	if err != nil {
		t.Fatalf("retrieve error: %v", err)
	}
	if got != "most relevant\nless relevant" {
		t.Fatalf("unexpected context: %q", got)
	}
	if len(embedder.queries) != 1 || embedder.queries[0] != "entropy" {
		t.Fatalf("query not embedded in query mode: %#v", embedder.queries)
	}
}

func TestRetrieveNoHits(t *testing.T) {
	store := newFakeStore()
	_, err := NewRetriever(&fakeEmbedder{}, store).Retrieve(context.Background(), "c", "entropy", 5)
	if !errors.Is(err, ErrNoRelevantContent) {
		t.Fatalf("expected ErrNoRelevantContent, got %v", err)
	}
}

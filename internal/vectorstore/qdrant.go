package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"eduquiz-platform/internal/logger"
	"eduquiz-platform/models"
)

const (
	// VectorDim is fixed by the embedding model (text-embedding-004).
	VectorDim = 768

	distanceCosine  = "Cosine"
	documentIDField = "document_id"
	previewLength   = 200
	scrollBatchSize = 256
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
)

// Store is a REST client to Qdrant. Collections are per-user namespaces of
// chunk points; every collection uses the same dimension and cosine distance.
type Store struct {
	url    string
	apiKey string
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Store{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Point is one stored chunk: id, vector and the chunk payload. The ID type is
// loose because scroll responses round-trip back into upserts during renames.
type Point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredChunk is one search hit.
type ScoredChunk struct {
	Chunk models.ChunkPayload
	Score float64
}

// CollectionName builds the per-owner namespace. At most one collection
// exists per (owner, logical name).
func CollectionName(ownerID, logical string) string {
	return ownerID + "_" + logical
}

// PointID derives a stable UUID from document and chunk index, so
// re-ingesting the same document overwrites its points instead of
// duplicating them.
func PointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", documentID, chunkIndex))).String()
}

// CollectionExists reports whether the named collection is present.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if errors.Is(err, ErrCollectionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateCollection creates the collection with the fixed schema and a keyword
// payload index on document_id. Calling it for an existing collection is a
// no-op.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.createCollection(ctx, name)
}

func (s *Store) createCollection(ctx context.Context, name string) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     VectorDim,
			"distance": distanceCosine,
		},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	return s.EnsureDocumentIndex(ctx, name)
}

// EnsureDocumentIndex creates the keyword payload index used by filtered
// deletes. Collections created before the index existed are backfilled lazily
// through this call; an already-present index is not an error.
func (s *Store) EnsureDocumentIndex(ctx context.Context, name string) error {
	body := map[string]any{
		"field_name":   documentIDField,
		"field_schema": "keyword",
	}
	err := s.do(ctx, http.MethodPut, "/collections/"+name+"/index", body, nil)
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return err
}

// DeleteCollection removes the collection. Missing collections surface as
// ErrCollectionNotFound.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("delete collection %q: %w", name, ErrCollectionNotFound)
	}
	return s.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

// ListCollections returns the names of all collections.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// Upsert writes points, overwriting by point id.
func (s *Store) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert %d points into %q: %w", len(points), name, err)
	}
	return nil
}

// Search returns the top-k chunks by cosine similarity, best first. Points
// with a payload missing required fields are skipped and logged rather than
// failing the whole call.
func (s *Store) Search(ctx context.Context, name string, queryVector []float32, k int) ([]ScoredChunk, error) {
	tracer := otel.Tracer("vector-store")
	ctx, span := tracer.Start(ctx, "qdrant.search")
	defer span.End()
	span.SetAttributes(attribute.String("qdrant.collection", name), attribute.Int("qdrant.limit", k))

	if k <= 0 {
		k = 5
	}
	body := map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", body, &resp); err != nil {
		return nil, err
	}

	results := make([]ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk, ok := chunkFromPayload(r.Payload)
		if !ok {
			logger.Warn("Skipping point with incomplete payload", "collection", name)
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Score: r.Score})
	}
	span.SetAttributes(attribute.Int("qdrant.hits", len(results)))
	return results, nil
}

// ListDocuments scrolls up to limit points and folds them into one summary
// per document, newest upload first. Documents without a timestamp sort last.
func (s *Store) ListDocuments(ctx context.Context, name string, limit int) ([]models.DocumentSummary, error) {
	points, err := s.scroll(ctx, name, nil, limit, false)
	if err != nil {
		return nil, err
	}

	type docAgg struct {
		summary    models.DocumentSummary
		firstIndex int
	}
	byID := make(map[string]*docAgg)
	order := make([]string, 0)

	for _, p := range points {
		chunk, ok := chunkFromPayload(p.Payload)
		if !ok {
			continue
		}
		agg, seen := byID[chunk.DocumentID]
		if !seen {
			agg = &docAgg{
				summary: models.DocumentSummary{
					DocumentID:      chunk.DocumentID,
					DocumentName:    chunk.DocumentName,
					StoragePath:     chunk.StoragePath,
					UploadTimestamp: chunk.UploadTimestamp,
				},
				firstIndex: -1,
			}
			byID[chunk.DocumentID] = agg
			order = append(order, chunk.DocumentID)
		}
		agg.summary.ChunksCount++
		if agg.firstIndex == -1 || chunk.ChunkIndex < agg.firstIndex {
			agg.firstIndex = chunk.ChunkIndex
			agg.summary.FirstChunk = truncate(chunk.Text, previewLength)
		}
	}

	summaries := make([]models.DocumentSummary, 0, len(order))
	for _, id := range order {
		summaries = append(summaries, byID[id].summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].UploadTimestamp, summaries[j].UploadTimestamp
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a > b
	})
	return summaries, nil
}

// UpdateDocumentName re-upserts every point of the document with the patched
// document_name. Returns false when the document has no points.
func (s *Store) UpdateDocumentName(ctx context.Context, name, documentID, newName string) (bool, error) {
	points, err := s.scroll(ctx, name, documentFilter(documentID), 0, true)
	if err != nil {
		return false, err
	}
	if len(points) == 0 {
		return false, nil
	}
	for i := range points {
		if points[i].Payload == nil {
			points[i].Payload = map[string]any{}
		}
		points[i].Payload["document_name"] = newName
	}
	if err := s.Upsert(ctx, name, points); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteDocument removes every point of the document via a filtered delete.
// Returns false when nothing matched.
func (s *Store) DeleteDocument(ctx context.Context, name, documentID string) (bool, error) {
	// Filtered deletes need the keyword index; backfill for collections
	// created before it was part of the schema.
	if err := s.EnsureDocumentIndex(ctx, name); err != nil {
		return false, err
	}

	matched, err := s.scroll(ctx, name, documentFilter(documentID), 1, false)
	if err != nil {
		return false, err
	}
	if len(matched) == 0 {
		return false, nil
	}

	body := map[string]any{"filter": documentFilter(documentID)}
	if err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/delete?wait=true", body, nil); err != nil {
		return false, fmt.Errorf("delete document %q from %q: %w", documentID, name, err)
	}
	return true, nil
}

// RenameCollection migrates every point (vectors included) from old into a
// freshly created collection, then drops old. The migration is not
// transactional: a crash mid-copy leaves both collections partially
// populated. On error the half-created target is deleted best-effort; the
// source is never restored.
func (s *Store) RenameCollection(ctx context.Context, oldName, newName string) error {
	tracer := otel.Tracer("vector-store")
	ctx, span := tracer.Start(ctx, "qdrant.rename_collection")
	defer span.End()
	span.SetAttributes(attribute.String("qdrant.from", oldName), attribute.String("qdrant.to", newName))

	exists, err := s.CollectionExists(ctx, oldName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("rename %q: %w", oldName, ErrCollectionNotFound)
	}
	exists, err = s.CollectionExists(ctx, newName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("rename to %q: %w", newName, ErrCollectionExists)
	}

	if err := s.createCollection(ctx, newName); err != nil {
		return err
	}

	migrate := func() error {
		points, err := s.scroll(ctx, oldName, nil, 0, true)
		if err != nil {
			return err
		}
		for start := 0; start < len(points); start += scrollBatchSize {
			end := min(start+scrollBatchSize, len(points))
			if err := s.Upsert(ctx, newName, points[start:end]); err != nil {
				return err
			}
		}
		return s.DeleteCollection(ctx, oldName)
	}

	if err := migrate(); err != nil {
		// Best-effort cleanup of the half-created target. The source is
		// left as-is; partial state requires manual reconciliation.
		if cleanupErr := s.DeleteCollection(ctx, newName); cleanupErr != nil {
			logger.Error("Failed to clean up target collection after rename failure",
				"collection", newName, "error", cleanupErr)
		}
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, err)
	}
	return nil
}

// scroll pages through points. limit <= 0 means all points. The filter is a
// Qdrant filter document or nil.
func (s *Store) scroll(ctx context.Context, name string, filter map[string]any, limit int, withVectors bool) ([]Point, error) {
	var all []Point
	var offset any

	for {
		batch := scrollBatchSize
		if limit > 0 && limit-len(all) < batch {
			batch = limit - len(all)
		}
		if batch <= 0 {
			break
		}

		body := map[string]any{
			"limit":        batch,
			"with_payload": true,
			"with_vector":  withVectors,
		}
		if filter != nil {
			body["filter"] = filter
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points         []Point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/scroll", body, &resp); err != nil {
			return nil, err
		}

		all = append(all, resp.Result.Points...)
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	return all, nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": documentIDField, "match": map[string]any{"value": documentID}},
		},
	}
}

// PayloadMap flattens a chunk payload into the stored wire form.
func PayloadMap(chunk models.ChunkPayload) map[string]any {
	return map[string]any{
		"document_id":      chunk.DocumentID,
		"document_name":    chunk.DocumentName,
		"storage_path":     chunk.StoragePath,
		"chunk_index":      chunk.ChunkIndex,
		"text":             chunk.Text,
		"upload_timestamp": chunk.UploadTimestamp,
	}
}

func chunkFromPayload(payload map[string]any) (models.ChunkPayload, bool) {
	var chunk models.ChunkPayload
	docID, okID := payload["document_id"].(string)
	text, okText := payload["text"].(string)
	if !okID || !okText || docID == "" {
		return chunk, false
	}
	chunk.DocumentID = docID
	chunk.Text = text
	if v, ok := payload["document_name"].(string); ok {
		chunk.DocumentName = v
	}
	if v, ok := payload["storage_path"].(string); ok {
		chunk.StoragePath = v
	}
	if v, ok := payload["chunk_index"].(float64); ok {
		chunk.ChunkIndex = int(v)
	}
	if v, ok := payload["upload_timestamp"].(string); ok {
		chunk.UploadTimestamp = v
	}
	return chunk, true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("qdrant %s %s: %w", method, path, ErrCollectionNotFound)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

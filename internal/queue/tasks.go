package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"eduquiz-platform/internal/crawler"
	"eduquiz-platform/internal/extract"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/internal/rag"
	"eduquiz-platform/internal/telemetry"
	"eduquiz-platform/models"
	"eduquiz-platform/utils"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskIngestWebsite  = "website:ingest"
)

// Extracted text is cached compressed so a re-chunk (e.g. after a chunking
// config change) does not have to re-parse the file.
const extractedTextTTL = 24 * time.Hour

type DocumentIngestPayload struct {
	OwnerID      string `json:"owner_id"`
	Collection   string `json:"collection"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	StoragePath  string `json:"storage_path"`
}

type WebsiteIngestPayload struct {
	OwnerID    string `json:"owner_id"`
	Collection string `json:"collection"`
	JobID      string `json:"job_id"`
	StartURL   string `json:"start_url"`
	MaxPages   int    `json:"max_pages"`
}

// Task creators
func NewDocumentIngestTask(p DocumentIngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewWebsiteIngestTask(p WebsiteIngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestWebsite,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(20*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	pipeline *rag.Pipeline
	rdb      *redis.Client
	metrics  *telemetry.Metrics
}

func NewTaskProcessor(pipeline *rag.Pipeline, rdb *redis.Client, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		pipeline: pipeline,
		rdb:      rdb,
		metrics:  metrics,
	}
}

// ProcessDocument extracts text from an uploaded file and runs it through the
// ingestion pipeline. Status transitions are tracked in Redis so the API can
// report progress without touching the queue.
func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing document", "document_id", payload.DocumentID, "collection", payload.Collection)
	p.setStatus(ctx, payload.DocumentID, models.IngestStatusProcessing, "")
	start := time.Now()

	text, err := p.extractedText(ctx, payload.DocumentID, payload.StoragePath)
	if err != nil {
		p.setStatus(ctx, payload.DocumentID, models.IngestStatusFailed, err.Error())
		return err
	}

	count, err := p.pipeline.Ingest(ctx, rag.IngestRequest{
		Collection:   payload.Collection,
		DocumentID:   payload.DocumentID,
		DocumentName: payload.DocumentName,
		StoragePath:  payload.StoragePath,
		Text:         text,
	})
	if err != nil {
		p.setStatus(ctx, payload.DocumentID, models.IngestStatusFailed, err.Error())
		return err
	}

	p.setStatus(ctx, payload.DocumentID, models.IngestStatusCompleted, "")
	p.metrics.RecordIngestion(count, time.Since(start).Seconds(), "document")
	logger.Info("Document ingested", "document_id", payload.DocumentID, "chunks", count)
	return nil
}

// ProcessWebsite crawls a site and ingests every page as its own document.
// Page URLs map to deterministic document IDs, so re-crawling a site updates
// pages in place instead of duplicating them.
func (p *TaskProcessor) ProcessWebsite(ctx context.Context, t *asynq.Task) error {
	var payload WebsiteIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Crawling website", "url", payload.StartURL, "max_pages", payload.MaxPages)
	p.setStatus(ctx, payload.JobID, models.IngestStatusProcessing, "")
	start := time.Now()

	pages, err := crawler.CrawlSite(payload.StartURL, payload.MaxPages)
	if err != nil {
		p.setStatus(ctx, payload.JobID, models.IngestStatusFailed, err.Error())
		return err
	}

	ingested := 0
	chunks := 0
	for _, page := range pages {
		name := page.Title
		if name == "" {
			name = page.URL
		}
		docID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(page.URL)).String()

		count, err := p.pipeline.Ingest(ctx, rag.IngestRequest{
			Collection:   payload.Collection,
			DocumentID:   docID,
			DocumentName: name,
			StoragePath:  page.URL,
			Text:         page.Text,
		})
		if err != nil {
			// One unparseable page should not fail the whole crawl
			logger.Warn("Skipping page", "url", page.URL, "error", err)
			continue
		}
		ingested++
		chunks += count
	}

	if ingested == 0 {
		err := fmt.Errorf("no pages ingested from %s", payload.StartURL)
		p.setStatus(ctx, payload.JobID, models.IngestStatusFailed, err.Error())
		return err
	}

	p.setStatus(ctx, payload.JobID, models.IngestStatusCompleted, "")
	p.metrics.RecordIngestion(chunks, time.Since(start).Seconds(), "website")
	logger.Info("Website ingested", "url", payload.StartURL, "pages", ingested)
	return nil
}

// extractedText returns the document's plain text, serving from the compressed
// Redis cache when a previous attempt already parsed the file.
func (p *TaskProcessor) extractedText(ctx context.Context, documentID, storagePath string) (string, error) {
	cacheKey := "ingest:text:" + documentID

	if cached, err := p.rdb.Get(ctx, cacheKey).Bytes(); err == nil && len(cached) > 0 {
		if text, err := utils.DecompressText(cached, utils.CompressionBrotli); err == nil {
			return text, nil
		}
		// Corrupt cache entry, fall through to re-extraction
		p.rdb.Del(ctx, cacheKey)
	}

	text, err := extract.Text(storagePath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", storagePath, err)
	}

	if compressed, _, err := utils.CompressText(text); err == nil {
		p.rdb.Set(ctx, cacheKey, compressed, extractedTextTTL)
	}
	return text, nil
}

func (p *TaskProcessor) setStatus(ctx context.Context, id, status, detail string) {
	key := StatusKey(id)
	fields := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if detail != "" {
		fields["detail"] = detail
	}
	if err := p.rdb.HSet(ctx, key, fields).Err(); err != nil {
		logger.Warn("Failed to update ingestion status", "id", id, "error", err)
		return
	}
	p.rdb.Expire(ctx, key, 7*24*time.Hour)
}

// StatusKey is the Redis hash holding ingestion progress for a document or
// crawl job.
func StatusKey(id string) string {
	return "ingest:status:" + id
}

// staleAfter is how long a status may sit in "processing" before the reaper
// assumes the worker died mid-task.
const staleAfter = time.Hour

// ReapStaleStatuses marks ingestion statuses stuck in "processing" as failed.
// Runs on a schedule; a task that crashed between retries would otherwise
// report "processing" forever.
func (p *TaskProcessor) ReapStaleStatuses(ctx context.Context) {
	var cursor uint64
	reaped := 0

	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, StatusKey("*"), 100).Result()
		if err != nil {
			logger.Warn("Stale status scan failed", "error", err)
			return
		}

		for _, key := range keys {
			fields, err := p.rdb.HGetAll(ctx, key).Result()
			if err != nil || fields["status"] != models.IngestStatusProcessing {
				continue
			}
			updatedAt, err := time.Parse(time.RFC3339, fields["updated_at"])
			if err != nil || time.Since(updatedAt) < staleAfter {
				continue
			}
			p.rdb.HSet(ctx, key, map[string]interface{}{
				"status":     models.IngestStatusFailed,
				"detail":     "ingestion stalled",
				"updated_at": time.Now().UTC().Format(time.RFC3339),
			})
			reaped++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if reaped > 0 {
		logger.Info("Reaped stale ingestion statuses", "count", reaped)
	}
}

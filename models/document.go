package models

// ChunkPayload is the payload stored alongside each vector point. Field names
// match the wire schema in the vector store, so renaming one here is a data
// migration.
type ChunkPayload struct {
	DocumentID      string `json:"document_id"`
	DocumentName    string `json:"document_name"`
	StoragePath     string `json:"storage_path"`
	ChunkIndex      int    `json:"chunk_index"`
	Text            string `json:"text"`
	UploadTimestamp string `json:"upload_timestamp"` // ISO-8601
}

// DocumentSummary is the per-document view assembled from chunk points when
// listing a collection.
type DocumentSummary struct {
	DocumentID      string `json:"document_id"`
	DocumentName    string `json:"document_name"`
	StoragePath     string `json:"storage_path"`
	UploadTimestamp string `json:"upload_timestamp"`
	ChunksCount     int    `json:"chunks_count"`
	FirstChunk      string `json:"first_chunk"`
}

// IngestionStatus values tracked in Redis while a document works through the
// background pipeline.
const (
	IngestStatusPending    = "pending"
	IngestStatusProcessing = "processing"
	IngestStatusCompleted  = "completed"
	IngestStatusFailed     = "failed"
)

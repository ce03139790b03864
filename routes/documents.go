package routes

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"eduquiz-platform/internal/config"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/internal/queue"
	"eduquiz-platform/internal/vectorstore"
	"eduquiz-platform/middleware"
	"eduquiz-platform/models"
	"eduquiz-platform/utils"
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// SetupDocumentRoutes wires document ingestion and collection management.
func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, store *vectorstore.Store, taskClient *asynq.Client, rdb *redis.Client, authMiddleware *middleware.AuthMiddleware, rateLimiter gin.HandlerFunc) {
	docs := router.Group("/documents")
	docs.Use(authMiddleware.RequireAuth(), rateLimiter)

	collections := router.Group("/collections")
	collections.Use(authMiddleware.RequireAuth(), rateLimiter)

	// Upload a file and queue it for background ingestion
	docs.POST("/upload", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		collection := strings.TrimSpace(c.PostForm("collection"))
		if collection == "" {
			utils.RespondWithBadRequest(c, "collection is required", nil)
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "file is required", gin.H{"error": err.Error()})
			return
		}
		if file.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "file exceeds the maximum allowed size", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedExtensions[ext] {
			utils.RespondWithBadRequest(c, "unsupported file type", gin.H{"extension": ext})
			return
		}

		documentID := uuid.NewString()
		storagePath := filepath.Join(cfg.FileStorageDir, documentID+ext)
		if err := c.SaveUploadedFile(file, storagePath); err != nil {
			utils.RespondWithInternalError(c, "Failed to store uploaded file", gin.H{"error": err.Error()})
			return
		}

		task, err := queue.NewDocumentIngestTask(queue.DocumentIngestPayload{
			OwnerID:      userID,
			Collection:   vectorstore.CollectionName(userID, collection),
			DocumentID:   documentID,
			DocumentName: file.Filename,
			StoragePath:  storagePath,
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create ingestion task", nil)
			return
		}
		if _, err := taskClient.Enqueue(task); err != nil {
			utils.RespondWithInternalError(c, "Failed to queue document for ingestion", gin.H{"error": err.Error()})
			return
		}

		rdb.HSet(c.Request.Context(), queue.StatusKey(documentID), map[string]interface{}{
			"status":     models.IngestStatusPending,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})

		logger.Info("Document queued for ingestion", "document_id", documentID, "user_id", userID)
		c.JSON(http.StatusAccepted, gin.H{
			"document_id": documentID,
			"status":      models.IngestStatusPending,
		})
	})

	// Crawl a website and queue its pages for ingestion
	docs.POST("/website", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req struct {
			URL        string `json:"url" binding:"required"`
			Collection string `json:"collection" binding:"required"`
			MaxPages   int    `json:"max_pages"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		maxPages := req.MaxPages
		if maxPages <= 0 || maxPages > cfg.CrawlMaxPages {
			maxPages = cfg.CrawlMaxPages
		}

		jobID := uuid.NewString()
		task, err := queue.NewWebsiteIngestTask(queue.WebsiteIngestPayload{
			OwnerID:    userID,
			Collection: vectorstore.CollectionName(userID, req.Collection),
			JobID:      jobID,
			StartURL:   req.URL,
			MaxPages:   maxPages,
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create crawl task", nil)
			return
		}
		if _, err := taskClient.Enqueue(task); err != nil {
			utils.RespondWithInternalError(c, "Failed to queue website for ingestion", gin.H{"error": err.Error()})
			return
		}

		rdb.HSet(c.Request.Context(), queue.StatusKey(jobID), map[string]interface{}{
			"status":     models.IngestStatusPending,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})

		c.JSON(http.StatusAccepted, gin.H{
			"job_id": jobID,
			"status": models.IngestStatusPending,
		})
	})

	// Ingestion status for a document or crawl job
	docs.GET("/status/:id", func(c *gin.Context) {
		fields, err := rdb.HGetAll(c.Request.Context(), queue.StatusKey(c.Param("id"))).Result()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read ingestion status", nil)
			return
		}
		if len(fields) == 0 {
			utils.RespondWithNotFound(c, "No ingestion status for this id")
			return
		}
		c.JSON(http.StatusOK, fields)
	})

	// List documents of one collection, newest upload first
	docs.GET("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		collection := strings.TrimSpace(c.Query("collection"))
		if collection == "" {
			utils.RespondWithBadRequest(c, "collection query parameter is required", nil)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		summaries, err := store.ListDocuments(c.Request.Context(), vectorstore.CollectionName(userID, collection), limit)
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": summaries})
	})

	// Rename a document across all of its chunks
	docs.PATCH("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req struct {
			Collection string `json:"collection" binding:"required"`
			NewName    string `json:"new_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		updated, err := store.UpdateDocumentName(c.Request.Context(),
			vectorstore.CollectionName(userID, req.Collection), c.Param("id"), req.NewName)
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to rename document", gin.H{"error": err.Error()})
			return
		}
		if !updated {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"document_id": c.Param("id"), "document_name": req.NewName})
	})

	// Delete all chunks of a document
	docs.DELETE("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		collection := strings.TrimSpace(c.Query("collection"))
		if collection == "" {
			utils.RespondWithBadRequest(c, "collection query parameter is required", nil)
			return
		}

		deleted, err := store.DeleteDocument(c.Request.Context(),
			vectorstore.CollectionName(userID, collection), c.Param("id"))
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete document", gin.H{"error": err.Error()})
			return
		}
		if !deleted {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	// List the caller's collections (logical names, owner prefix stripped)
	collections.GET("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		names, err := store.ListCollections(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list collections", gin.H{"error": err.Error()})
			return
		}

		prefix := userID + "_"
		owned := make([]string, 0)
		for _, name := range names {
			if strings.HasPrefix(name, prefix) {
				owned = append(owned, strings.TrimPrefix(name, prefix))
			}
		}
		c.JSON(http.StatusOK, gin.H{"collections": owned})
	})

	// Rename a collection by migrating its points
	collections.POST("/:name/rename", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req struct {
			NewName string `json:"new_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		err := store.RenameCollection(c.Request.Context(),
			vectorstore.CollectionName(userID, c.Param("name")),
			vectorstore.CollectionName(userID, req.NewName))
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}
		if errors.Is(err, vectorstore.ErrCollectionExists) {
			utils.RespondWithConflict(c, "A collection with the new name already exists")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to rename collection", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"collection": req.NewName})
	})

	// Delete a collection and everything in it
	collections.DELETE("/:name", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		err := store.DeleteCollection(c.Request.Context(), vectorstore.CollectionName(userID, c.Param("name")))
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete collection", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})
}

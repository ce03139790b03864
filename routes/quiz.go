package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/internal/config"
	"eduquiz-platform/internal/database"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/internal/quiz"
	"eduquiz-platform/internal/rag"
	"eduquiz-platform/internal/telemetry"
	"eduquiz-platform/internal/vectorstore"
	"eduquiz-platform/middleware"
	"eduquiz-platform/models"
	"eduquiz-platform/services"
	"eduquiz-platform/utils"
)

const (
	maxQuestionsPerQuiz = 20
	// Generation over-asks so deduplication can discard near-duplicates and
	// still fill the requested count.
	generationOverhead = 2
	// Rough per-question token budget charged against the daily quota.
	tokensPerQuestion = 600
)

// QuizDeps bundles the services the quiz endpoints need.
type QuizDeps struct {
	Config    *config.Config
	Repo      *database.QuizRepository
	Retriever *rag.Retriever
	Generator *quiz.Generator
	Deduper   *quiz.Deduplicator
	Evaluator *quiz.Evaluator
	Quota     *ai.QuotaTracker
	Export    *services.ExportService
	Metrics   *telemetry.Metrics
}

// SetupQuizRoutes wires quiz generation, answering and export.
func SetupQuizRoutes(router *gin.Engine, deps QuizDeps, authMiddleware *middleware.AuthMiddleware, rateLimiter gin.HandlerFunc) {
	quizzes := router.Group("/quiz")
	quizzes.Use(authMiddleware.RequireAuth(), rateLimiter)

	// Generate a quiz from the caller's ingested material
	quizzes.POST("/generate", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req struct {
			Collection string `json:"collection" binding:"required"`
			Topic      string `json:"topic" binding:"required"`
			Count      int    `json:"count"`
			Type       string `json:"type"`
			Difficulty string `json:"difficulty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		count := req.Count
		if count <= 0 {
			count = 5
		}
		if count > maxQuestionsPerQuiz {
			count = maxQuestionsPerQuiz
		}

		qType, ok := models.ParseQuestionType(req.Type)
		if !ok {
			qType = models.QuestionMultipleChoice
		}
		difficulty, ok := models.ParseDifficulty(strings.ToLower(req.Difficulty))
		if !ok {
			difficulty = models.DifficultyMedium
		}

		ctx := c.Request.Context()

		if err := deps.Quota.Consume(ctx, userID, int64(count*tokensPerQuestion)); err != nil {
			if errors.Is(err, ai.ErrQuotaExceeded) {
				utils.RespondWithTooManyRequests(c, "Daily generation quota exceeded")
				return
			}
			utils.RespondWithInternalError(c, "Quota check failed", nil)
			return
		}
		deps.Metrics.RecordTokensUsed(int64(count*tokensPerQuestion), deps.Config.GeminiModel)

		contextText, err := deps.Retriever.Retrieve(ctx,
			vectorstore.CollectionName(userID, req.Collection), req.Topic, deps.Config.RetrievalTopK)
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			utils.RespondWithNotFound(c, "Collection not found")
			return
		}
		if errors.Is(err, rag.ErrNoRelevantContent) {
			utils.RespondWithNotFound(c, "No relevant content found for this topic")
			return
		}
		if err != nil {
			utils.RespondWithBadGateway(c, "Retrieval failed", gin.H{"error": err.Error()})
			return
		}

		candidates, err := deps.Generator.Generate(ctx, contextText, count*generationOverhead, qType, difficulty)
		if errors.Is(err, ai.ErrMalformedResponse) || errors.Is(err, quiz.ErrNoValidQuestions) {
			utils.RespondWithBadGateway(c, "The model did not produce usable questions", gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			utils.RespondWithBadGateway(c, "Question generation failed", gin.H{"error": err.Error()})
			return
		}

		questions, err := deps.Deduper.Dedupe(ctx, candidates, count, qType)
		if err != nil {
			utils.RespondWithBadGateway(c, "Deduplication failed", gin.H{"error": err.Error()})
			return
		}
		if len(questions) == 0 {
			utils.RespondWithBadGateway(c, "All generated questions were near-duplicates", nil)
			return
		}
		deps.Metrics.RecordGeneration(len(questions), len(candidates)-len(questions), string(qType))

		newQuiz := &models.Quiz{
			ID:      uuid.NewString(),
			OwnerID: userID,
			Topic:   req.Topic,
		}
		if err := deps.Repo.CreateQuizWithQuestions(ctx, newQuiz, questions); err != nil {
			utils.RespondWithInternalError(c, "Failed to persist quiz", gin.H{"error": err.Error()})
			return
		}

		logger.Info("Quiz generated", "quiz_id", newQuiz.ID, "questions", len(questions), "user_id", userID)
		c.JSON(http.StatusCreated, newQuiz)
	})

	// List the caller's quizzes
	quizzes.GET("", func(c *gin.Context) {
		list, err := deps.Repo.ListQuizzes(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list quizzes", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quizzes": list})
	})

	// Fetch one quiz with its questions
	quizzes.GET("/:id", func(c *gin.Context) {
		q, err := deps.Repo.GetQuiz(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if errors.Is(err, database.ErrNotFound) {
			utils.RespondWithNotFound(c, "Quiz not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch quiz", nil)
			return
		}
		c.JSON(http.StatusOK, q)
	})

	// Submit an answer to one question; repeat submissions replace the
	// previous result
	quizzes.POST("/:id/answer", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req struct {
			QuestionID string `json:"question_id" binding:"required"`
			Answer     string `json:"answer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		question, err := deps.Repo.GetQuestion(c.Request.Context(), req.QuestionID)
		if errors.Is(err, database.ErrNotFound) {
			utils.RespondWithNotFound(c, "Question not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch question", nil)
			return
		}
		if question.QuizID != c.Param("id") {
			utils.RespondWithNotFound(c, "Question does not belong to this quiz")
			return
		}

		result, err := deps.Evaluator.Evaluate(c.Request.Context(), question, userID, req.Answer)
		if errors.Is(err, ai.ErrMalformedResponse) {
			utils.RespondWithBadGateway(c, "The grading model returned an unusable response", nil)
			return
		}
		if err != nil {
			utils.RespondWithBadGateway(c, "Grading failed", gin.H{"error": err.Error()})
			return
		}
		deps.Metrics.RecordAnswerGraded(string(question.Type), result.IsCorrect)
		c.JSON(http.StatusOK, result)
	})

	// The caller's results for one quiz
	quizzes.GET("/:id/results", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		// Ownership check doubles as existence check
		if _, err := deps.Repo.GetQuiz(c.Request.Context(), c.Param("id"), userID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.RespondWithNotFound(c, "Quiz not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to fetch quiz", nil)
			return
		}

		results, err := deps.Repo.ListResults(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to fetch results", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	// Export a quiz with the caller's results as JSON or Excel
	quizzes.GET("/:id/export", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		format := c.DefaultQuery("format", "excel")

		data, err := deps.Export.BuildExportData(c.Request.Context(), c.Param("id"), userID, userID, format)
		if errors.Is(err, database.ErrNotFound) {
			utils.RespondWithNotFound(c, "Quiz not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build export", gin.H{"error": err.Error()})
			return
		}

		if err := deps.Export.StreamExport(c, data, format); err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}
	})
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	TokensUsed        metric.Int64Counter
	ChunksStored      metric.Int64Counter
	IngestionDuration metric.Float64Histogram
	QuestionsKept     metric.Int64Counter
	QuestionsDropped  metric.Int64Counter
	AnswersGraded     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("eduquiz-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	chunksStored, err := meter.Int64Counter(
		"ingestion.chunks.stored",
		metric.WithDescription("Total chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	questionsKept, err := meter.Int64Counter(
		"quiz.questions.kept",
		metric.WithDescription("Generated questions that survived validation and dedup"),
	)
	if err != nil {
		return nil, err
	}

	questionsDropped, err := meter.Int64Counter(
		"quiz.questions.dropped",
		metric.WithDescription("Generated questions dropped as invalid or near-duplicate"),
	)
	if err != nil {
		return nil, err
	}

	answersGraded, err := meter.Int64Counter(
		"quiz.answers.graded",
		metric.WithDescription("Total student answers evaluated"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		TokensUsed:        tokensUsed,
		ChunksStored:      chunksStored,
		IngestionDuration: ingestionDuration,
		QuestionsKept:     questionsKept,
		QuestionsDropped:  questionsDropped,
		AnswersGraded:     answersGraded,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordIngestion records one completed document ingestion
func (m *Metrics) RecordIngestion(chunks int, duration float64, source string) {
	attrs := []attribute.KeyValue{
		attribute.String("ingestion.source", source),
	}

	m.ChunksStored.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
	m.IngestionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordGeneration records the outcome of one quiz generation pass
func (m *Metrics) RecordGeneration(kept, dropped int, questionType string) {
	attrs := []attribute.KeyValue{
		attribute.String("question.type", questionType),
	}

	m.QuestionsKept.Add(context.Background(), int64(kept), metric.WithAttributes(attrs...))
	m.QuestionsDropped.Add(context.Background(), int64(dropped), metric.WithAttributes(attrs...))
}

// RecordAnswerGraded records one evaluated answer
func (m *Metrics) RecordAnswerGraded(questionType string, correct bool) {
	attrs := []attribute.KeyValue{
		attribute.String("question.type", questionType),
		attribute.Bool("answer.correct", correct),
	}

	m.AnswersGraded.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
)

type fakeCounter struct {
	embedded.Int64Counter
	total int64
}

func (c *fakeCounter) Add(_ context.Context, n int64, _ ...metric.AddOption) {
	c.total += n
}

type fakeHistogram struct {
	embedded.Float64Histogram
	values []float64
}

func (h *fakeHistogram) Record(_ context.Context, v float64, _ ...metric.RecordOption) {
	h.values = append(h.values, v)
}

func TestInitMetrics(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if m.RequestCounter == nil || m.TokensUsed == nil || m.ChunksStored == nil ||
		m.QuestionsKept == nil || m.QuestionsDropped == nil || m.AnswersGraded == nil {
		t.Fatal("expected all instruments to be created")
	}
}

func TestRecordIngestion(t *testing.T) {
	chunks := &fakeCounter{}
	duration := &fakeHistogram{}
	m := &Metrics{ChunksStored: chunks, IngestionDuration: duration}

	m.RecordIngestion(12, 1.5, "document")
	m.RecordIngestion(3, 0.2, "website")

	if chunks.total != 15 {
		t.Fatalf("chunks stored: got %d, want 15", chunks.total)
	}
	if len(duration.values) != 2 || duration.values[0] != 1.5 {
		t.Fatalf("durations: %v", duration.values)
	}
}

func TestRecordGeneration(t *testing.T) {
	kept := &fakeCounter{}
	dropped := &fakeCounter{}
	m := &Metrics{QuestionsKept: kept, QuestionsDropped: dropped}

	m.RecordGeneration(5, 3, "multiple_choice")

	if kept.total != 5 || dropped.total != 3 {
		t.Fatalf("kept %d dropped %d", kept.total, dropped.total)
	}
}

func TestRecordAnswerGraded(t *testing.T) {
	graded := &fakeCounter{}
	m := &Metrics{AnswersGraded: graded}

	m.RecordAnswerGraded("short_answer", true)
	m.RecordAnswerGraded("true_false", false)

	if graded.total != 2 {
		t.Fatalf("graded: got %d, want 2", graded.total)
	}
}

func TestRecordTokensUsed(t *testing.T) {
	tokens := &fakeCounter{}
	m := &Metrics{TokensUsed: tokens}

	m.RecordTokensUsed(3000, "gemini-2.0-flash")

	if tokens.total != 3000 {
		t.Fatalf("tokens: got %d, want 3000", tokens.total)
	}
}

func TestRecordRequest(t *testing.T) {
	counter := &fakeCounter{}
	duration := &fakeHistogram{}
	m := &Metrics{RequestCounter: counter, RequestDuration: duration}

	m.RecordRequest("POST", "/quiz/generate", "success", 0.25)

	if counter.total != 1 {
		t.Fatalf("requests: got %d, want 1", counter.total)
	}
	if len(duration.values) != 1 || duration.values[0] != 0.25 {
		t.Fatalf("durations: %v", duration.values)
	}
}

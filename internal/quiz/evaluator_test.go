package quiz

import (
	"context"
	"errors"
	"testing"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/models"
)

// memoryResults keys stored rows by (question, user), mirroring the unique
// index in the real store.
type memoryResults struct {
	rows map[string]models.QuestionResult
}

func newMemoryResults() *memoryResults {
	return &memoryResults{rows: make(map[string]models.QuestionResult)}
}

func (m *memoryResults) UpsertResult(_ context.Context, result *models.QuestionResult) error {
	m.rows[result.QuestionID+"/"+result.UserID] = *result
	return nil
}

func mcQuestion() *models.QuizQuestion {
	return &models.QuizQuestion{
		ID:            "q-mc",
		QuizID:        "quiz-1",
		Text:          "Unit of force?",
		Type:          models.QuestionMultipleChoice,
		Options:       []string{"Newton", "Joule", "Watt", "Pascal"},
		Marks:         2,
		CorrectAnswer: "0",
	}
}

func TestEvaluateMultipleChoice(t *testing.T) {
	results := newMemoryResults()
	e := NewEvaluator(&fakeModel{}, results)

	cases := []struct {
		answer  string
		correct bool
	}{
		{"0", true},
		{"Newton", true}, // option text at the correct index also counts
		{"1", false},
		{"Joule", false},
		{"", false},
	}
	for _, tc := range cases {
		result, err := e.Evaluate(context.Background(), mcQuestion(), "user-1", tc.answer)
		if err != nil {
			t.Fatalf("evaluate(%q): %v", tc.answer, err)
		}
		if result.IsCorrect != tc.correct {
			t.Errorf("evaluate(%q): correct=%v, want %v", tc.answer, result.IsCorrect, tc.correct)
		}
		wantScore := 0.0
		if tc.correct {
			wantScore = 2
		}
		if result.Score != wantScore {
			t.Errorf("evaluate(%q): score=%v, want %v", tc.answer, result.Score, wantScore)
		}
	}
}

func TestEvaluateTrueFalseCaseInsensitive(t *testing.T) {
	e := NewEvaluator(&fakeModel{}, newMemoryResults())
	q := &models.QuizQuestion{
		ID: "q-tf", QuizID: "quiz-1", Type: models.QuestionTrueFalse,
		Marks: 1, CorrectAnswer: "true",
	}

	result, err := e.Evaluate(context.Background(), q, "user-1", "  TRUE ")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.IsCorrect || result.Score != 1 {
		t.Fatalf("expected full marks, got %+v", result)
	}

	result, err = e.Evaluate(context.Background(), q, "user-1", "false")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.IsCorrect || result.Score != 0 {
		t.Fatalf("expected zero, got %+v", result)
	}
}

func saGradedQuestion() *models.QuizQuestion {
	return &models.QuizQuestion{
		ID: "q-sa", QuizID: "quiz-1", Type: models.QuestionShortAnswer,
		Text: "Explain entropy.", Marks: 5, CorrectAnswer: "Disorder of a system",
	}
}

func TestEvaluateShortAnswerPassThreshold(t *testing.T) {
	// The model's own is_correct flag is ignored; 4 of 5 marks crosses the
	// 0.8 pass fraction.
	model := &fakeModel{response: `The grade is {"is_correct": false, "score": 4, "percentage": 80}`}
	e := NewEvaluator(model, newMemoryResults())

	result, err := e.Evaluate(context.Background(), saGradedQuestion(), "user-1", "entropy measures disorder")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 4 || !result.IsCorrect {
		t.Fatalf("expected score 4 and correct, got %+v", result)
	}
}

func TestEvaluateShortAnswerBelowThreshold(t *testing.T) {
	model := &fakeModel{response: `{"is_correct": true, "score": 3, "percentage": 60}`}
	e := NewEvaluator(model, newMemoryResults())

	result, err := e.Evaluate(context.Background(), saGradedQuestion(), "user-1", "something vague")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 3 || result.IsCorrect {
		t.Fatalf("expected score 3 and incorrect, got %+v", result)
	}
}

func TestEvaluateShortAnswerClampsScore(t *testing.T) {
	model := &fakeModel{response: `{"is_correct": true, "score": 12, "percentage": 240}`}
	e := NewEvaluator(model, newMemoryResults())

	result, err := e.Evaluate(context.Background(), saGradedQuestion(), "user-1", "a very long answer")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 5 {
		t.Fatalf("score not clamped to marks: %v", result.Score)
	}
}

func TestEvaluateShortAnswerBlankSkipsModel(t *testing.T) {
	model := &fakeModel{err: errors.New("must not be called")}
	e := NewEvaluator(model, newMemoryResults())

	result, err := e.Evaluate(context.Background(), saGradedQuestion(), "user-1", "   ")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 0 || result.IsCorrect {
		t.Fatalf("blank answer must score zero, got %+v", result)
	}
	if model.calls != 0 {
		t.Fatalf("model called %d times for a blank answer", model.calls)
	}
}

func TestEvaluateShortAnswerMalformedVerdict(t *testing.T) {
	model := &fakeModel{response: "I think it is pretty good overall."}
	e := NewEvaluator(model, newMemoryResults())

	_, err := e.Evaluate(context.Background(), saGradedQuestion(), "user-1", "answer")
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestEvaluateReplacesPreviousResult(t *testing.T) {
	results := newMemoryResults()
	e := NewEvaluator(&fakeModel{}, results)

	if _, err := e.Evaluate(context.Background(), mcQuestion(), "user-1", "1"); err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	if _, err := e.Evaluate(context.Background(), mcQuestion(), "user-1", "0"); err != nil {
		t.Fatalf("second evaluate: %v", err)
	}

	if len(results.rows) != 1 {
		t.Fatalf("expected one row per (question, user), got %d", len(results.rows))
	}
	row := results.rows["q-mc/user-1"]
	if !row.IsCorrect || row.StudentAnswer != "0" {
		t.Fatalf("second submission did not replace the first: %+v", row)
	}
}

func TestEvaluateUnsupportedType(t *testing.T) {
	e := NewEvaluator(&fakeModel{}, newMemoryResults())
	q := &models.QuizQuestion{ID: "q-x", Type: models.QuestionType("essay")}
	if _, err := e.Evaluate(context.Background(), q, "user-1", "x"); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

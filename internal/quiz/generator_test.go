package quiz

import (
	"context"
	"errors"
	"testing"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/models"
)

type fakeModel struct {
	response string
	err      error
	calls    int
}

func (f *fakeModel) GenerateText(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

const validMCResponse = "Here are your questions:\n```json\n" + `[
  {"question": "What is the unit of force?", "type": "multiple_choice",
   "options": ["Newton", "Joule", "Watt", "Pascal"],
   "difficulty": "easy", "marks": 2, "hints": ["SI units"],
   "explanation": "Force is measured in newtons.", "correct_answer": "0"},
  {"question": "Which law relates force and acceleration?", "type": "multiple_choice",
   "options": ["First law", "Second law", "Third law", "Zeroth law"],
   "difficulty": "medium", "marks": 0, "hints": [],
   "explanation": "", "correct_answer": 1}
]` + "\n```\n"

func TestGenerateParsesFencedArray(t *testing.T) {
	g := NewGenerator(&fakeModel{response: validMCResponse})

	questions, err := g.Generate(context.Background(), "physics notes", 2, models.QuestionMultipleChoice, models.DifficultyMedium)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}

	first := questions[0]
	if first.CorrectAnswer != "0" || first.Marks != 2 || first.Difficulty != models.DifficultyEasy {
		t.Fatalf("first question mis-parsed: %+v", first)
	}
	if first.ID == "" || questions[1].ID == "" || first.ID == questions[1].ID {
		t.Fatal("questions must get distinct generated ids")
	}

	// Numeric correct_answer is coerced to its string form; zero marks
	// default to 1
	second := questions[1]
	if second.CorrectAnswer != "1" {
		t.Fatalf("numeric answer not coerced: %q", second.CorrectAnswer)
	}
	if second.Marks != 1 {
		t.Fatalf("zero marks not defaulted: %d", second.Marks)
	}
}

func TestGenerateDropsInvalidItems(t *testing.T) {
	response := "```json\n" + `[
  {"question": "", "type": "multiple_choice", "options": ["a","b","c","d"], "correct_answer": "0"},
  {"question": "Only three options", "type": "multiple_choice", "options": ["a","b","c"], "correct_answer": "0"},
  {"question": "Answer out of range", "type": "multiple_choice", "options": ["a","b","c","d"], "correct_answer": "7"},
  {"question": "Valid one", "type": "multiple_choice", "options": ["a","b","c","d"], "difficulty": "weird", "correct_answer": "3"}
]` + "\n```"
	g := NewGenerator(&fakeModel{response: response})

	questions, err := g.Generate(context.Background(), "ctx", 4, models.QuestionMultipleChoice, models.DifficultyHard)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 surviving question, got %d", len(questions))
	}
	if questions[0].Difficulty != models.DifficultyHard {
		t.Fatalf("unknown difficulty should fall back to the requested one, got %s", questions[0].Difficulty)
	}
}

func TestGenerateNoFence(t *testing.T) {
	g := NewGenerator(&fakeModel{response: `[{"question":"q"}]`})
	_, err := g.Generate(context.Background(), "ctx", 1, models.QuestionShortAnswer, models.DifficultyEasy)
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGenerateTopLevelNotArray(t *testing.T) {
	g := NewGenerator(&fakeModel{response: "```json\n{\"question\":\"q\"}\n```"})
	_, err := g.Generate(context.Background(), "ctx", 1, models.QuestionShortAnswer, models.DifficultyEasy)
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGenerateAllInvalid(t *testing.T) {
	response := "```json\n" + `[{"question": "", "type": "short_answer"}]` + "\n```"
	g := NewGenerator(&fakeModel{response: response})
	_, err := g.Generate(context.Background(), "ctx", 1, models.QuestionShortAnswer, models.DifficultyEasy)
	if !errors.Is(err, ErrNoValidQuestions) {
		t.Fatalf("expected ErrNoValidQuestions, got %v", err)
	}
}

func TestGenerateModelError(t *testing.T) {
	modelErr := errors.New("upstream down")
	g := NewGenerator(&fakeModel{err: modelErr})
	_, err := g.Generate(context.Background(), "ctx", 1, models.QuestionTrueFalse, models.DifficultyEasy)
	if !errors.Is(err, modelErr) {
		t.Fatalf("expected model error to propagate, got %v", err)
	}
}

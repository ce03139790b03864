package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/models"
)

// A short answer passes when the model-assigned score reaches this fraction
// of the maximum marks.
const shortAnswerPassFraction = 0.8

// ResultStore persists graded submissions, replacing on (question, user)
// conflict so retries are idempotent.
type ResultStore interface {
	UpsertResult(ctx context.Context, result *models.QuestionResult) error
}

// Evaluator grades a submitted answer against its stored question.
type Evaluator struct {
	model   TextGenerator
	results ResultStore
}

func NewEvaluator(model TextGenerator, results ResultStore) *Evaluator {
	return &Evaluator{model: model, results: results}
}

// Evaluate dispatches on the question type, persists the result, and returns
// it. Multiple choice and true/false grade locally; short answers go to the
// model, whose numeric score is trusted but whose own correctness verdict is
// recomputed here.
func (e *Evaluator) Evaluate(ctx context.Context, question *models.QuizQuestion, userID, answer string) (*models.QuestionResult, error) {
	var score float64
	var isCorrect bool

	switch question.Type {
	case models.QuestionMultipleChoice:
		isCorrect = gradeMultipleChoice(question, answer)
		if isCorrect {
			score = float64(question.Marks)
		}

	case models.QuestionTrueFalse:
		isCorrect = strings.EqualFold(strings.TrimSpace(answer), question.CorrectAnswer)
		if isCorrect {
			score = float64(question.Marks)
		}

	case models.QuestionShortAnswer:
		var err error
		score, isCorrect, err = e.gradeShortAnswer(ctx, question, answer)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported question type %q", question.Type)
	}

	result := &models.QuestionResult{
		QuestionID:    question.ID,
		QuizID:        question.QuizID,
		UserID:        userID,
		Score:         score,
		IsCorrect:     isCorrect,
		StudentAnswer: answer,
	}
	if err := e.results.UpsertResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// gradeMultipleChoice accepts either the option index as a string or the
// option text itself.
func gradeMultipleChoice(question *models.QuizQuestion, answer string) bool {
	submitted := strings.TrimSpace(answer)
	if submitted == question.CorrectAnswer {
		return true
	}
	index, err := strconv.Atoi(question.CorrectAnswer)
	if err != nil || index < 0 || index >= len(question.Options) {
		return false
	}
	return submitted == question.Options[index]
}

type gradingVerdict struct {
	IsCorrect  bool    `json:"is_correct"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
}

func (e *Evaluator) gradeShortAnswer(ctx context.Context, question *models.QuizQuestion, answer string) (float64, bool, error) {
	// Blank submissions score zero without burning a model call.
	if strings.TrimSpace(answer) == "" {
		return 0, false, nil
	}

	prompt := buildGradingPrompt(question, answer)
	raw, err := e.model.GenerateText(ctx, prompt)
	if err != nil {
		return 0, false, err
	}

	span, err := ai.ExtractFirstJSON(raw)
	if err != nil {
		return 0, false, err
	}

	var verdict gradingVerdict
	if err := json.Unmarshal([]byte(ai.StripControlChars(span)), &verdict); err != nil {
		return 0, false, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	maxMarks := float64(question.Marks)
	score := verdict.Score
	if score < 0 {
		score = 0
	}
	if score > maxMarks {
		score = maxMarks
	}

	// The model's own is_correct flag is ignored; only its score is trusted.
	isCorrect := score >= shortAnswerPassFraction*maxMarks
	return score, isCorrect, nil
}

func buildGradingPrompt(question *models.QuizQuestion, answer string) string {
	var sb strings.Builder
	sb.WriteString("You are grading a student's short answer.\n")
	sb.WriteString("Question: " + question.Text + "\n")
	sb.WriteString("Reference answer: " + question.CorrectAnswer + "\n")
	sb.WriteString("Student answer: " + answer + "\n")
	sb.WriteString(fmt.Sprintf("Maximum marks: %d\n", question.Marks))
	sb.WriteString(`Award partial credit for partially correct answers.
Respond with a single JSON object: {"is_correct": bool, "score": number, "percentage": number}.
"score" is between 0 and the maximum marks.`)
	return sb.String()
}

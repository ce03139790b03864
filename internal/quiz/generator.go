package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/models"
)

// ErrNoValidQuestions is returned when the model responded but every item was
// dropped during validation.
var ErrNoValidQuestions = errors.New("no valid questions in model response")

// TextGenerator is the generative model dependency shared by question
// generation and grading.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator prompts the model for exam questions grounded in a retrieved
// context string and validates the structured response.
type Generator struct {
	model TextGenerator
}

func NewGenerator(model TextGenerator) *Generator {
	return &Generator{model: model}
}

// Generate asks for count questions of the given type and returns the
// validated candidates. Individual malformed items are dropped; the call only
// fails when the response cannot be parsed at all or nothing survives
// validation.
func (g *Generator) Generate(ctx context.Context, contextText string, count int, qType models.QuestionType, difficulty models.Difficulty) ([]models.QuizQuestion, error) {
	prompt := buildQuestionPrompt(contextText, count, qType, difficulty)

	raw, err := g.model.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	items, err := parseQuestionArray(raw)
	if err != nil {
		return nil, err
	}

	questions := make([]models.QuizQuestion, 0, len(items))
	for _, item := range items {
		q, ok := validateQuestion(item, qType, difficulty)
		if !ok {
			logger.Warn("Dropping invalid generated question", "type", string(qType))
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, ErrNoValidQuestions
	}
	return questions, nil
}

func buildQuestionPrompt(contextText string, count int, qType models.QuestionType, difficulty models.Difficulty) string {
	var sb strings.Builder

	sb.WriteString("You are an exam author. Using ONLY the study material below, write ")
	sb.WriteString(strconv.Itoa(count))
	switch qType {
	case models.QuestionMultipleChoice:
		sb.WriteString(" multiple-choice questions. Each question must have exactly 4 options and " +
			"\"correct_answer\" must be the index of the correct option as a string (\"0\" to \"3\").")
	case models.QuestionTrueFalse:
		sb.WriteString(" true/false statements. \"options\" must be an empty array and " +
			"\"correct_answer\" must be \"true\" or \"false\".")
	default:
		sb.WriteString(" short-answer questions. \"options\" must be an empty array and " +
			"\"correct_answer\" must contain the model answer.")
	}

	sb.WriteString(fmt.Sprintf("\nTarget an average difficulty of %q.", string(difficulty)))
	sb.WriteString(`
Respond with a JSON array inside a fenced code block. Each item must have the fields:
question, type, options, difficulty, marks, hints, explanation, correct_answer.
"difficulty" is one of "easy", "medium", "hard". "marks" is an integer.
"hints" is an array of up to 2 short hints. Do not add any text outside the fenced block.

Study material:
`)
	sb.WriteString(contextText)
	return sb.String()
}

// rawQuestion tolerates the looser typing models produce: marks as a float,
// correct_answer as a bare number.
type rawQuestion struct {
	Question      string          `json:"question"`
	Type          string          `json:"type"`
	Options       []string        `json:"options"`
	Difficulty    string          `json:"difficulty"`
	Marks         float64         `json:"marks"`
	Hints         []string        `json:"hints"`
	Explanation   string          `json:"explanation"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
}

func parseQuestionArray(raw string) ([]rawQuestion, error) {
	block, err := ai.ExtractFencedJSON(raw)
	if err != nil {
		return nil, err
	}

	cleaned := ai.StripControlChars(block)
	if !strings.HasPrefix(strings.TrimSpace(cleaned), "[") {
		return nil, fmt.Errorf("%w: top-level value is not an array", ai.ErrMalformedResponse)
	}

	var items []rawQuestion
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return items, nil
}

func validateQuestion(item rawQuestion, qType models.QuestionType, fallbackDifficulty models.Difficulty) (models.QuizQuestion, bool) {
	var q models.QuizQuestion

	text := strings.TrimSpace(item.Question)
	if text == "" {
		return q, false
	}

	answer := answerString(item.CorrectAnswer)

	if qType == models.QuestionMultipleChoice {
		if len(item.Options) != 4 {
			return q, false
		}
		if len(answer) != 1 || answer[0] < '0' || answer[0] > '3' {
			return q, false
		}
	}

	difficulty, ok := models.ParseDifficulty(strings.ToLower(item.Difficulty))
	if !ok {
		difficulty = fallbackDifficulty
	}

	marks := int(item.Marks)
	if marks <= 0 {
		marks = 1
	}

	q = models.QuizQuestion{
		ID:            uuid.NewString(),
		Text:          text,
		Type:          qType,
		Options:       item.Options,
		Difficulty:    difficulty,
		Marks:         marks,
		Hints:         item.Hints,
		Explanation:   strings.TrimSpace(item.Explanation),
		CorrectAnswer: answer,
	}
	return q, true
}

// answerString coerces a correct_answer of either JSON string or number form.
func answerString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.Itoa(int(n))
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return strings.TrimSpace(string(raw))
}

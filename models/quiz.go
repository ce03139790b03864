package models

import "time"

// QuestionType is the closed set of supported question kinds. Grading and
// generation both dispatch over this enum, so adding a kind means touching
// every switch that consumes it.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionTrueFalse      QuestionType = "true_false"
)

// ParseQuestionType maps a wire string onto the enum.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch QuestionType(s) {
	case QuestionMultipleChoice, QuestionShortAnswer, QuestionTrueFalse:
		return QuestionType(s), true
	}
	return "", false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(s), true
	}
	return "", false
}

// Quiz owns its questions. A quiz row is only ever written together with at
// least one question (see database.CreateQuizWithQuestions).
type Quiz struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	OwnerID   string         `json:"owner_id" gorm:"size:64;index"`
	Topic     string         `json:"topic" gorm:"size:255"`
	CreatedAt time.Time      `json:"created_at"`
	Questions []QuizQuestion `json:"questions" gorm:"foreignKey:QuizID"`
}

type QuizQuestion struct {
	ID            string       `json:"id" gorm:"primaryKey;size:36"`
	QuizID        string       `json:"quiz_id" gorm:"size:36;index"`
	Text          string       `json:"question" gorm:"type:text"`
	Type          QuestionType `json:"type" gorm:"size:32"`
	Options       []string     `json:"options" gorm:"serializer:json"`
	Difficulty    Difficulty   `json:"difficulty" gorm:"size:16"`
	Marks         int          `json:"marks"`
	Hints         []string     `json:"hints" gorm:"serializer:json"`
	Explanation   string       `json:"explanation" gorm:"type:text"`
	CorrectAnswer string       `json:"correct_answer" gorm:"size:1024"`
}

// QuestionResult stores one graded submission per (question, user). Repeat
// submissions replace the earlier row instead of accumulating.
type QuestionResult struct {
	ID            uint      `json:"-" gorm:"primaryKey"`
	QuestionID    string    `json:"question_id" gorm:"size:36;uniqueIndex:idx_result_question_user"`
	QuizID        string    `json:"quiz_id" gorm:"size:36;index"`
	UserID        string    `json:"user_id" gorm:"size:64;uniqueIndex:idx_result_question_user"`
	Score         float64   `json:"score"`
	IsCorrect     bool      `json:"is_correct"`
	StudentAnswer string    `json:"student_answer" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eduquiz-platform/models"
)

// ErrNotFound is returned when a quiz or question does not exist (or is not
// visible to the requesting owner).
var ErrNotFound = errors.New("record not found")

// QuizRepository is the relational store for quizzes, questions and graded
// results.
type QuizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// CreateQuizWithQuestions writes the quiz and all of its questions in one
// transaction. A quiz is never persisted with zero questions.
func (r *QuizRepository) CreateQuizWithQuestions(ctx context.Context, quiz *models.Quiz, questions []models.QuizQuestion) error {
	if len(questions) == 0 {
		return fmt.Errorf("quiz must have at least one question")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quiz).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].QuizID = quiz.ID
		}
		if err := tx.Create(&questions).Error; err != nil {
			return err
		}
		quiz.Questions = questions
		return nil
	})
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID, ownerID string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.WithContext(ctx).
		Preload("Questions").
		Where("id = ? AND owner_id = ?", quizID, ownerID).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) ListQuizzes(ctx context.Context, ownerID string) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) GetQuestion(ctx context.Context, questionID string) (*models.QuizQuestion, error) {
	var question models.QuizQuestion
	err := r.db.WithContext(ctx).Where("id = ?", questionID).First(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// UpsertResult inserts the graded result or, on (question_id, user_id)
// conflict, replaces the previous submission. Repeat submissions never
// accumulate rows.
func (r *QuizRepository) UpsertResult(ctx context.Context, result *models.QuestionResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "question_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quiz_id", "score", "is_correct", "student_answer", "updated_at",
		}),
	}).Create(result).Error
}

func (r *QuizRepository) ListResults(ctx context.Context, quizID, userID string) ([]models.QuestionResult, error) {
	var results []models.QuestionResult
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Find(&results).Error
	return results, err
}

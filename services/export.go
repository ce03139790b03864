package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"eduquiz-platform/internal/database"
	"eduquiz-platform/models"
)

// QuizExportData bundles a quiz, its questions and the requesting user's
// graded results for export.
type QuizExportData struct {
	ExportInfo QuizExportInfo          `json:"export_info"`
	Quiz       *models.Quiz            `json:"quiz"`
	Results    []models.QuestionResult `json:"results"`
	Summary    QuizExportSummary       `json:"summary"`
}

type QuizExportInfo struct {
	ExportDate time.Time `json:"export_date"`
	QuizID     string    `json:"quiz_id"`
	Topic      string    `json:"topic"`
	UserID     string    `json:"user_id"`
	Format     string    `json:"format"`
}

type QuizExportSummary struct {
	TotalQuestions int     `json:"total_questions"`
	Answered       int     `json:"answered"`
	Correct        int     `json:"correct"`
	TotalMarks     int     `json:"total_marks"`
	ScoredMarks    float64 `json:"scored_marks"`
	Percentage     float64 `json:"percentage"`
}

// ExportService builds quiz result exports
type ExportService struct {
	repo *database.QuizRepository
}

func NewExportService(repo *database.QuizRepository) *ExportService {
	return &ExportService{repo: repo}
}

// BuildExportData loads the quiz and the user's results and computes the
// summary block.
func (es *ExportService) BuildExportData(ctx context.Context, quizID, ownerID, userID, format string) (*QuizExportData, error) {
	quiz, err := es.repo.GetQuiz(ctx, quizID, ownerID)
	if err != nil {
		return nil, err
	}

	results, err := es.repo.ListResults(ctx, quizID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}

	summary := QuizExportSummary{
		TotalQuestions: len(quiz.Questions),
		Answered:       len(results),
	}
	for _, q := range quiz.Questions {
		summary.TotalMarks += q.Marks
	}
	for _, r := range results {
		summary.ScoredMarks += r.Score
		if r.IsCorrect {
			summary.Correct++
		}
	}
	if summary.TotalMarks > 0 {
		summary.Percentage = summary.ScoredMarks / float64(summary.TotalMarks) * 100
	}

	return &QuizExportData{
		ExportInfo: QuizExportInfo{
			ExportDate: time.Now(),
			QuizID:     quiz.ID,
			Topic:      quiz.Topic,
			UserID:     userID,
			Format:     format,
		},
		Quiz:    quiz,
		Results: results,
		Summary: summary,
	}, nil
}

// StreamExport streams export data directly to the HTTP response
func (es *ExportService) StreamExport(ctx *gin.Context, data *QuizExportData, format string) error {
	switch format {
	case "json":
		ctx.Header("Content-Type", "application/json")
		ctx.Header("Content-Disposition", "attachment; filename=quiz_export.json")

		jsonData, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}

		ctx.Header("Content-Length", strconv.Itoa(len(jsonData)))
		ctx.Data(http.StatusOK, "application/json", jsonData)

	case "excel":
		buf, err := es.buildWorkbook(data)
		if err != nil {
			return err
		}

		ctx.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		ctx.Header("Content-Disposition", "attachment; filename=quiz_export.xlsx")
		ctx.Header("Content-Length", strconv.Itoa(buf.Len()))
		ctx.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())

	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	return nil
}

// buildWorkbook renders the quiz and results into an Excel workbook
func (es *ExportService) buildWorkbook(data *QuizExportData) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Questions sheet
	sheetName := "Questions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	resultsByQuestion := make(map[string]models.QuestionResult, len(data.Results))
	for _, r := range data.Results {
		resultsByQuestion[r.QuestionID] = r
	}

	headers := []string{
		"Question", "Type", "Difficulty", "Marks", "Options",
		"Correct Answer", "Your Answer", "Score", "Correct",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, q := range data.Quiz.Questions {
		row := rowIdx + 2

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), q.Text)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), string(q.Type))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(q.Difficulty))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), q.Marks)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), strings.Join(q.Options, " | "))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), q.CorrectAnswer)

		if r, ok := resultsByQuestion[q.ID]; ok {
			f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), r.StudentAnswer)
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), r.Score)
			f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), r.IsCorrect)
		}
	}

	for i := 0; i < len(headers); i++ {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 18)
	}

	// Summary sheet
	summarySheetName := "Summary"
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryData := [][]interface{}{
		{"Export Information", ""},
		{"Export Date", data.ExportInfo.ExportDate.Format("2006-01-02 15:04:05")},
		{"Quiz", data.ExportInfo.Topic},
		{"Quiz ID", data.ExportInfo.QuizID},
		{"User ID", data.ExportInfo.UserID},
		{"", ""},
		{"Results", ""},
		{"Total Questions", data.Summary.TotalQuestions},
		{"Answered", data.Summary.Answered},
		{"Correct", data.Summary.Correct},
		{"Total Marks", data.Summary.TotalMarks},
		{"Scored Marks", data.Summary.ScoredMarks},
		{"Percentage", fmt.Sprintf("%.2f", data.Summary.Percentage)},
	}

	for i, row := range summaryData {
		for j, cell := range row {
			cellRef := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(summarySheetName, cellRef, cell)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return &buf, nil
}

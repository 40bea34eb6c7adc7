package dto

import (
	"strconv"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/handler/helper"
	"github.com/yourusername/bible-tournament-api/internal/service"
)

// StartAttemptRequest номер попытки, которую начинает участник
type StartAttemptRequest struct {
	AttemptNumber int `json:"attempt_number" binding:"required,min=1"`
}

// SubmitAttemptRequest ответы участника: ID вопроса -> позиция показанного варианта
type SubmitAttemptRequest struct {
	Answers map[string]int `json:"answers" binding:"required"`
}

// ParseAnswers переводит ключи JSON объекта в ID вопросов
func (r *SubmitAttemptRequest) ParseAnswers() (map[uint]int, error) {
	out := make(map[uint]int, len(r.Answers))
	for key, answer := range r.Answers {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, err
		}
		out[uint(id)] = answer
	}
	return out, nil
}

// QualificationSettingsRequest настройки теста турнира
type QualificationSettingsRequest struct {
	QuestionsCount   int                  `json:"questions_count" binding:"required"`
	TimeLimitMinutes int                  `json:"time_limit_minutes"`
	PassPercentage   float64              `json:"pass_percentage"`
	ScoringMethod    entity.ScoringMethod `json:"scoring_method" binding:"required"`
	MaxAttempts      int                  `json:"max_attempts" binding:"required"`
	Categories       []string             `json:"categories"`
}

// ToSettings переводит запрос в настройки домена
func (r *QualificationSettingsRequest) ToSettings() entity.QuizSettings {
	return entity.QuizSettings{
		QuestionsCount:   r.QuestionsCount,
		TimeLimitMinutes: r.TimeLimitMinutes,
		PassPercentage:   r.PassPercentage,
		ScoringMethod:    r.ScoringMethod,
		MaxAttempts:      r.MaxAttempts,
		Categories:       r.Categories,
	}
}

// AttemptQuestionResponse вопрос попытки без правильного ответа
type AttemptQuestionResponse struct {
	ID         uint                    `json:"id"`
	Text       string                  `json:"text"`
	Options    []helper.QuestionOption `json:"options"`
	Category   string                  `json:"category"`
	Difficulty entity.Difficulty       `json:"difficulty"`
}

// AttemptResponse начатая попытка
type AttemptResponse struct {
	AttemptID     uint                      `json:"attempt_id"`
	AttemptNumber int                       `json:"attempt_number"`
	StartedAt     time.Time                 `json:"started_at"`
	ExpiresAt     *time.Time                `json:"expires_at,omitempty"`
	Questions     []AttemptQuestionResponse `json:"questions"`
}

// NewAttemptResponse создает DTO начатой попытки
func NewAttemptResponse(view *service.AttemptView) AttemptResponse {
	questions := make([]AttemptQuestionResponse, 0, len(view.Questions))
	for _, q := range view.Questions {
		questions = append(questions, AttemptQuestionResponse{
			ID:         q.ID,
			Text:       q.Text,
			Options:    helper.ConvertOptionsToObjects(q.Options),
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
	}
	return AttemptResponse{
		AttemptID:     view.Attempt.ID,
		AttemptNumber: view.Attempt.AttemptNumber,
		StartedAt:     view.Attempt.StartedAt,
		ExpiresAt:     view.ExpiresAt,
		Questions:     questions,
	}
}

// SubmitAttemptResponse результат попытки
type SubmitAttemptResponse struct {
	AttemptID         uint                     `json:"attempt_id"`
	Score             float64                  `json:"score"`
	Passed            bool                     `json:"passed"`
	TimedOut          bool                     `json:"timed_out"`
	Correct           int                      `json:"correct"`
	Total             int                      `json:"total"`
	ApplicationStatus entity.ApplicationStatus `json:"application_status"`
	RemainingAttempts int                      `json:"remaining_attempts"`
}

// NewSubmitAttemptResponse создает DTO результата попытки
func NewSubmitAttemptResponse(result *service.SubmitResult) SubmitAttemptResponse {
	return SubmitAttemptResponse{
		AttemptID:         result.Attempt.ID,
		Score:             result.Attempt.Score,
		Passed:            result.Attempt.Passed,
		TimedOut:          result.Attempt.TimedOut,
		Correct:           result.Correct,
		Total:             result.Total,
		ApplicationStatus: result.Application.Status,
		RemainingAttempts: result.Application.AttemptsRemaining,
	}
}

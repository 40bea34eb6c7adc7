package dto

import (
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// CreateQuestionRequest запрос на создание вопроса
type CreateQuestionRequest struct {
	Text          string                `json:"text" binding:"required,min=3,max=1000"`
	Options       []string              `json:"options" binding:"required,min=2,max=6,dive,required"`
	CorrectOption *int                  `json:"correct_option" binding:"required,min=0"`
	Category      string                `json:"category" binding:"required,max=100"`
	Difficulty    entity.Difficulty     `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Source        entity.QuestionSource `json:"source" binding:"omitempty,oneof=manual ai"`
}

// ReviewQuestionRequest решение модератора
type ReviewQuestionRequest struct {
	Decision entity.ApprovalStatus `json:"decision" binding:"required,oneof=approved rejected needs_revision"`
	Reason   string                `json:"reason" binding:"max=500"`
}

// TransitionRequest ручной переход жизненного цикла
type TransitionRequest struct {
	To     entity.QuestionStatus `json:"to" binding:"required"`
	Reason string                `json:"reason" binding:"max=500"`
}

// QuestionResponse вопрос для администратора тенанта
type QuestionResponse struct {
	ID               uint                  `json:"id"`
	Text             string                `json:"text"`
	Options          []string              `json:"options"`
	CorrectOption    int                   `json:"correct_option"`
	Category         string                `json:"category"`
	Difficulty       entity.Difficulty     `json:"difficulty"`
	Source           entity.QuestionSource `json:"source"`
	Status           entity.QuestionStatus `json:"status"`
	ApprovalStatus   entity.ApprovalStatus `json:"approval_status"`
	UsageCount       int                   `json:"usage_count"`
	SourceQuestionID *uint                 `json:"source_question_id,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// NewQuestionResponse создает DTO вопроса
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:               q.ID,
		Text:             q.Text,
		Options:          q.Options,
		CorrectOption:    q.CorrectOption,
		Category:         q.Category,
		Difficulty:       q.Difficulty,
		Source:           q.Source,
		Status:           q.Status,
		ApprovalStatus:   q.ApprovalStatus,
		UsageCount:       q.UsageCount,
		SourceQuestionID: q.SourceQuestionID,
		CreatedAt:        q.CreatedAt,
	}
}

// NewQuestionListResponse создает список DTO вопросов
func NewQuestionListResponse(questions []entity.Question) []QuestionResponse {
	out := make([]QuestionResponse, 0, len(questions))
	for i := range questions {
		out = append(out, NewQuestionResponse(&questions[i]))
	}
	return out
}

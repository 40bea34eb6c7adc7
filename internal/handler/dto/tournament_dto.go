package dto

import (
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/service"
)

// SelectQuestionsRequest кандидаты для предварительного набора
type SelectQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" binding:"required,min=1"`
	// AutoFill категории, которые нужно добрать до минимума из пула
	AutoFill []string `json:"auto_fill"`
}

// SelectionResponse предварительный набор и предупреждения автодобора
type SelectionResponse struct {
	*service.PendingSelection
	Warnings []string `json:"warnings"`
}

// SaveTournamentConfigRequest сохранение набора вопросов турнира
type SaveTournamentConfigRequest struct {
	QuestionIDs []uint                     `json:"question_ids" binding:"required"`
	Minimum     *int                       `json:"minimum_questions_per_category" binding:"omitempty,min=1"`
	ReleaseMode entity.PracticeReleaseMode `json:"practice_release_mode" binding:"omitempty,oneof=immediate delayed manual"`
	DelayHours  *int                       `json:"practice_release_delay_hours" binding:"omitempty,min=0"`
}

// EndTournamentRequest завершение турнира. Пустое время означает "сейчас".
type EndTournamentRequest struct {
	EndedAt *time.Time `json:"ended_at"`
}

package dto

import (
	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// CreateBonusRequest запрос бонусных вопросов
type CreateBonusRequest struct {
	SourceQuestionIDs  []uint                 `json:"source_question_ids" binding:"required,min=1"`
	TournamentID       *uint                  `json:"tournament_id"`
	UseDirectly        bool                   `json:"use_directly"`
	Strategy           entity.RetwistStrategy `json:"retwist_strategy" binding:"omitempty,oneof=synonym paraphrase perspective context creative hybrid"`
	Quality            entity.RetwistQuality  `json:"retwist_quality" binding:"omitempty,oneof=basic standard premium"`
	GenerateVariations int                    `json:"generate_variations" binding:"min=0"`
}

// ApproveBonusRequest одобрение сгенерированных вопросов
type ApproveBonusRequest struct {
	QuestionIDs []uint                  `json:"question_ids" binding:"required,min=1"`
	Destination entity.BonusDestination `json:"destination" binding:"required,oneof=pool tournament"`
}

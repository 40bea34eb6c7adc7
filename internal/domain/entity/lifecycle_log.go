package entity

import (
	"time"

	"gorm.io/datatypes"
)

// TriggeredBy инициатор перехода
type TriggeredBy string

const (
	TriggeredByUser   TriggeredBy = "user"
	TriggeredBySystem TriggeredBy = "system"
)

// QuestionLifecycleLog - запись журнала переходов вопроса.
// Журнал только дополняется; текущий Question.Status - проекция последней записи.
type QuestionLifecycleLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	QuestionID   uint              `gorm:"not null;index" json:"question_id"`
	TenantID     uint              `gorm:"not null;index" json:"tenant_id"`
	FromStatus   QuestionStatus    `gorm:"size:30;not null" json:"from_status"`
	ToStatus     QuestionStatus    `gorm:"size:30;not null" json:"to_status"`
	Reason       string            `gorm:"size:500" json:"reason"`
	TriggeredBy  TriggeredBy       `gorm:"size:10;not null" json:"triggered_by"`
	ActorID      *uint             `json:"actor_id,omitempty"`
	TournamentID *uint             `gorm:"index" json:"tournament_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (QuestionLifecycleLog) TableName() string {
	return "question_lifecycle_logs"
}

package entity

import (
	"time"
)

// Difficulty сложность вопроса
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid проверяет, что значение входит в закрытый набор
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionSource происхождение вопроса
type QuestionSource string

const (
	SourceManual     QuestionSource = "manual"
	SourceAI         QuestionSource = "ai"
	SourceManualCopy QuestionSource = "manual_copy" // копия, созданная бонусным запросом с useDirectly
)

// IsValid проверяет, что значение входит в закрытый набор
func (s QuestionSource) IsValid() bool {
	switch s {
	case SourceManual, SourceAI, SourceManualCopy:
		return true
	}
	return false
}

// SkipsReview сообщает, может ли вопрос попасть в пул без AI-ревью
func (s QuestionSource) SkipsReview() bool {
	return s == SourceManual || s == SourceManualCopy
}

// ApprovalStatus статус модерации вопроса
type ApprovalStatus string

const (
	ApprovalPending       ApprovalStatus = "pending"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalRejected      ApprovalStatus = "rejected"
	ApprovalNeedsRevision ApprovalStatus = "needs_revision"
)

// IsValid проверяет, что значение входит в закрытый набор
func (a ApprovalStatus) IsValid() bool {
	switch a {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalNeedsRevision:
		return true
	}
	return false
}

// Question представляет вопрос тенанта в пайплайне жизненного цикла
type Question struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	TenantID         uint           `gorm:"not null;index:idx_questions_tenant_status,priority:1" json:"tenant_id"`
	Text             string         `gorm:"size:1000;not null" json:"text"`
	Options          StringArray    `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption    int            `gorm:"not null" json:"-"` // Скрыто от клиента
	Category         string         `gorm:"size:100;not null;index" json:"category"`
	Difficulty       Difficulty     `gorm:"size:10;not null" json:"difficulty"`
	Source           QuestionSource `gorm:"size:20;not null" json:"source"`
	Status           QuestionStatus `gorm:"size:30;not null;index:idx_questions_tenant_status,priority:2" json:"status"`
	ApprovalStatus   ApprovalStatus `gorm:"size:20;not null;default:pending" json:"approval_status"`
	UsageCount       int            `gorm:"not null;default:0" json:"usage_count"`
	SourceQuestionID *uint          `gorm:"index" json:"source_question_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным
func (q *Question) IsCorrect(selectedOption int) bool {
	return selectedOption == q.CorrectOption
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли выбранный вариант допустимым
func (q *Question) IsValidOption(selectedOption int) bool {
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// CanChangeApprovalTo проверяет переход статуса модерации.
// approved/rejected достижимы только из pending или needs_revision.
func (q *Question) CanChangeApprovalTo(next ApprovalStatus) bool {
	if !next.IsValid() {
		return false
	}
	switch next {
	case ApprovalApproved, ApprovalRejected:
		return q.ApprovalStatus == ApprovalPending || q.ApprovalStatus == ApprovalNeedsRevision
	case ApprovalNeedsRevision:
		return q.ApprovalStatus == ApprovalPending
	}
	return false
}

// CanTransitionTo проверяет, допустим ли переход жизненного цикла для этого вопроса
func (q *Question) CanTransitionTo(to QuestionStatus) bool {
	return CanTransition(q.Status, to, q.Source)
}

// Clone возвращает глубокую копию вопроса
func (q *Question) Clone() *Question {
	c := *q
	if q.Options != nil {
		c.Options = make(StringArray, len(q.Options))
		copy(c.Options, q.Options)
	}
	if q.SourceQuestionID != nil {
		id := *q.SourceQuestionID
		c.SourceQuestionID = &id
	}
	return &c
}

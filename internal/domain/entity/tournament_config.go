package entity

import "time"

// PracticeReleaseMode политика возврата турнирных вопросов в практику
type PracticeReleaseMode string

const (
	ReleaseImmediate PracticeReleaseMode = "immediate"
	ReleaseDelayed   PracticeReleaseMode = "delayed"
	ReleaseManual    PracticeReleaseMode = "manual"
)

// IsValid проверяет, что значение входит в закрытый набор
func (m PracticeReleaseMode) IsValid() bool {
	switch m {
	case ReleaseImmediate, ReleaseDelayed, ReleaseManual:
		return true
	}
	return false
}

// ValidationStatus результат последней валидации конфигурации
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// TournamentQuestionConfig набор вопросов, привязанный к турниру
type TournamentQuestionConfig struct {
	TournamentID                uint                `gorm:"primaryKey;autoIncrement:false" json:"tournament_id"`
	TenantID                    uint                `gorm:"not null;index" json:"tenant_id"`
	SelectedQuestionIDs         UintArray           `gorm:"type:jsonb;not null" json:"selected_question_ids"`
	MinimumQuestionsPerCategory int                 `gorm:"not null;default:10" json:"minimum_questions_per_category"`
	PracticeReleaseMode         PracticeReleaseMode `gorm:"size:20;not null;default:immediate" json:"practice_release_mode"`
	DelayHours                  int                 `gorm:"not null;default:0" json:"delay_hours"`
	ValidationStatus            ValidationStatus    `gorm:"size:20;not null;default:pending" json:"validation_status"`
	CommittedAt                 *time.Time          `json:"committed_at,omitempty"`
	ActivatedAt                 *time.Time          `json:"activated_at,omitempty"`
	EndedAt                     *time.Time          `gorm:"index" json:"ended_at,omitempty"`
	PracticeReleasedAt          *time.Time          `json:"practice_released_at,omitempty"`
	CreatedAt                   time.Time           `json:"created_at"`
	UpdatedAt                   time.Time           `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (TournamentQuestionConfig) TableName() string {
	return "tournament_question_configs"
}

// IsCommitted сообщает, были ли вопросы уже зарезервированы за турниром
func (c *TournamentQuestionConfig) IsCommitted() bool {
	return c.CommittedAt != nil
}

// IsReleased сообщает, вернулись ли вопросы турнира в практику
func (c *TournamentQuestionConfig) IsReleased() bool {
	return c.PracticeReleasedAt != nil
}

// ReleaseDueAt возвращает момент, когда вопросы становятся доступны для практики.
// ok=false для ручного режима и для незавершенных турниров.
func (c *TournamentQuestionConfig) ReleaseDueAt() (time.Time, bool) {
	if c.EndedAt == nil {
		return time.Time{}, false
	}
	switch c.PracticeReleaseMode {
	case ReleaseImmediate:
		return *c.EndedAt, true
	case ReleaseDelayed:
		return c.EndedAt.Add(time.Duration(c.DelayHours) * time.Hour), true
	}
	return time.Time{}, false
}

// Clone возвращает глубокую копию конфигурации
func (c *TournamentQuestionConfig) Clone() *TournamentQuestionConfig {
	out := *c
	out.SelectedQuestionIDs = c.SelectedQuestionIDs.Clone()
	out.CommittedAt = cloneTime(c.CommittedAt)
	out.ActivatedAt = cloneTime(c.ActivatedAt)
	out.EndedAt = cloneTime(c.EndedAt)
	out.PracticeReleasedAt = cloneTime(c.PracticeReleasedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

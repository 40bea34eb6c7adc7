package entity

import "time"

// ApplicationStatus статус заявки на участие в турнире
type ApplicationStatus string

const (
	ApplicationPending        ApplicationStatus = "pending"
	ApplicationQuizInProgress ApplicationStatus = "quiz_in_progress"
	ApplicationAwaitingRetry  ApplicationStatus = "awaiting_retry"
	ApplicationQualified      ApplicationStatus = "qualified"
	ApplicationNotQualified   ApplicationStatus = "not_qualified"
)

// IsFinal сообщает, что квалификация завершена
func (s ApplicationStatus) IsFinal() bool {
	return s == ApplicationQualified || s == ApplicationNotQualified
}

// AttemptStatus статус попытки квалификационного теста
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// ScoringMethod способ агрегации результатов нескольких попыток
type ScoringMethod string

const (
	ScoringAverage ScoringMethod = "average"
	ScoringBest    ScoringMethod = "best"
	ScoringLatest  ScoringMethod = "latest"
)

// IsValid проверяет, что значение входит в закрытый набор
func (m ScoringMethod) IsValid() bool {
	switch m {
	case ScoringAverage, ScoringBest, ScoringLatest:
		return true
	}
	return false
}

// TournamentApplication заявка пользователя на участие в турнире
type TournamentApplication struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	TenantID          uint              `gorm:"not null;index" json:"tenant_id"`
	TournamentID      uint              `gorm:"not null;uniqueIndex:idx_applications_tournament_user,priority:1" json:"tournament_id"`
	UserID            uint              `gorm:"not null;uniqueIndex:idx_applications_tournament_user,priority:2" json:"user_id"`
	Status            ApplicationStatus `gorm:"size:20;not null;default:pending" json:"status"`
	AttemptsRemaining int               `gorm:"not null" json:"attempts_remaining"`
	FinalScore        *float64          `json:"final_score,omitempty"`
	QuizAttempts      []QuizAttempt     `gorm:"foreignKey:ApplicationID" json:"quiz_attempts,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (TournamentApplication) TableName() string {
	return "tournament_applications"
}

// ActiveAttempt возвращает незавершенную попытку, если она есть
func (a *TournamentApplication) ActiveAttempt() *QuizAttempt {
	for i := range a.QuizAttempts {
		if a.QuizAttempts[i].Status == AttemptInProgress {
			return &a.QuizAttempts[i]
		}
	}
	return nil
}

// NextAttemptNumber возвращает номер следующей попытки (нумерация с 1, без пропусков)
func (a *TournamentApplication) NextAttemptNumber() int {
	return len(a.QuizAttempts) + 1
}

// SubmittedScores возвращает баллы отправленных попыток в порядке номеров
func (a *TournamentApplication) SubmittedScores() []float64 {
	scores := make([]float64, 0, len(a.QuizAttempts))
	for _, attempt := range a.QuizAttempts {
		if attempt.Status == AttemptSubmitted {
			scores = append(scores, attempt.Score)
		}
	}
	return scores
}

// HasPassed сообщает, была ли хотя бы одна попытка успешной
func (a *TournamentApplication) HasPassed() bool {
	for _, attempt := range a.QuizAttempts {
		if attempt.Status == AttemptSubmitted && attempt.Passed {
			return true
		}
	}
	return false
}

// QuizAttempt попытка квалификационного теста
type QuizAttempt struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	ApplicationID     uint          `gorm:"not null;uniqueIndex:idx_attempts_application_number,priority:1" json:"application_id"`
	AttemptNumber     int           `gorm:"not null;uniqueIndex:idx_attempts_application_number,priority:2" json:"attempt_number"`
	Status            AttemptStatus `gorm:"size:20;not null" json:"status"`
	QuestionsShown    UintArray     `gorm:"type:jsonb;not null" json:"questions_shown"`
	OptionOrders      OptionOrders  `gorm:"type:jsonb;not null" json:"option_orders"`
	Answers           AnswerMap     `gorm:"type:jsonb;not null" json:"answers"`
	Score             float64       `gorm:"not null;default:0" json:"score"`
	Passed            bool          `gorm:"not null;default:false" json:"passed"`
	RandomizationSeed int64         `gorm:"not null" json:"randomization_seed"`
	StartedAt         time.Time     `gorm:"not null" json:"started_at"`
	SubmittedAt       *time.Time    `json:"submitted_at,omitempty"`
	TimeTaken         int           `gorm:"not null;default:0" json:"time_taken"` // в секундах
	TimedOut          bool          `gorm:"not null;default:false" json:"timed_out"`
}

// TableName определяет имя таблицы для GORM
func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Clone возвращает глубокую копию заявки вместе с попытками
func (a *TournamentApplication) Clone() *TournamentApplication {
	out := *a
	if a.FinalScore != nil {
		v := *a.FinalScore
		out.FinalScore = &v
	}
	if a.QuizAttempts != nil {
		out.QuizAttempts = make([]QuizAttempt, len(a.QuizAttempts))
		for i := range a.QuizAttempts {
			out.QuizAttempts[i] = *a.QuizAttempts[i].Clone()
		}
	}
	return &out
}

// Clone возвращает глубокую копию попытки
func (q *QuizAttempt) Clone() *QuizAttempt {
	out := *q
	out.QuestionsShown = q.QuestionsShown.Clone()
	if q.OptionOrders != nil {
		out.OptionOrders = make(OptionOrders, len(q.OptionOrders))
		for id, order := range q.OptionOrders {
			out.OptionOrders[id] = append([]int(nil), order...)
		}
	}
	if q.Answers != nil {
		out.Answers = make(AnswerMap, len(q.Answers))
		for id, idx := range q.Answers {
			out.Answers[id] = idx
		}
	}
	out.SubmittedAt = cloneTime(q.SubmittedAt)
	return &out
}

// QuizSettings настройки квалификационного теста турнира
type QuizSettings struct {
	QuestionsCount   int           `json:"questions_count" validate:"gte=1,lte=100"`
	TimeLimitMinutes int           `json:"time_limit_minutes" validate:"gte=0"`
	PassPercentage   float64       `json:"pass_percentage" validate:"gte=0,lte=100"`
	ScoringMethod    ScoringMethod `json:"scoring_method" validate:"oneof=average best latest"`
	MaxAttempts      int           `json:"max_attempts" validate:"gte=1"`
	Categories       []string      `json:"categories,omitempty"`
}

// TournamentQualificationConfig хранит настройки теста, заданные организатором турнира
type TournamentQualificationConfig struct {
	TournamentID     uint          `gorm:"primaryKey;autoIncrement:false" json:"tournament_id"`
	TenantID         uint          `gorm:"not null;index" json:"tenant_id"`
	QuestionsCount   int           `gorm:"not null" json:"questions_count"`
	TimeLimitMinutes int           `gorm:"not null" json:"time_limit_minutes"`
	PassPercentage   float64       `gorm:"not null" json:"pass_percentage"`
	ScoringMethod    ScoringMethod `gorm:"size:10;not null" json:"scoring_method"`
	MaxAttempts      int           `gorm:"not null" json:"max_attempts"`
	Categories       StringArray   `gorm:"type:jsonb" json:"categories"`
}

// TableName определяет имя таблицы для GORM
func (TournamentQualificationConfig) TableName() string {
	return "tournament_qualification_configs"
}

// Settings преобразует запись в настройки теста
func (c *TournamentQualificationConfig) Settings() QuizSettings {
	return QuizSettings{
		QuestionsCount:   c.QuestionsCount,
		TimeLimitMinutes: c.TimeLimitMinutes,
		PassPercentage:   c.PassPercentage,
		ScoringMethod:    c.ScoringMethod,
		MaxAttempts:      c.MaxAttempts,
		Categories:       append([]string(nil), c.Categories...),
	}
}

// PracticeAnalytics агрегированная статистика практики пользователя
type PracticeAnalytics struct {
	PracticeSessions int     `json:"practice_sessions"`
	AverageAccuracy  float64 `json:"average_accuracy"`
	StreakDays       int     `json:"streak_days"`
}

// PracticeStats строка статистики практики, которую ведет модуль практики
type PracticeStats struct {
	TenantID         uint      `gorm:"primaryKey;autoIncrement:false" json:"tenant_id"`
	UserID           uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PracticeSessions int       `gorm:"not null;default:0" json:"practice_sessions"`
	AverageAccuracy  float64   `gorm:"not null;default:0" json:"average_accuracy"`
	StreakDays       int       `gorm:"not null;default:0" json:"streak_days"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (PracticeStats) TableName() string {
	return "practice_stats"
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// BonusRequestStatus состояние бонусного запроса.
// Движется только вперед; failed достижим из любого нетерминального состояния.
type BonusRequestStatus string

const (
	BonusAnalyzing            BonusRequestStatus = "analyzing"
	BonusRetwisting           BonusRequestStatus = "retwisting"
	BonusGeneratingVariations BonusRequestStatus = "generating_variations"
	BonusAwaitingApproval     BonusRequestStatus = "awaiting_approval"
	BonusCompleted            BonusRequestStatus = "completed"
	BonusFailed               BonusRequestStatus = "failed"
)

var bonusStatusOrder = map[BonusRequestStatus]int{
	BonusAnalyzing:            0,
	BonusRetwisting:           1,
	BonusGeneratingVariations: 2,
	BonusAwaitingApproval:     3,
	BonusCompleted:            4,
}

// IsTerminal сообщает, завершен ли запрос
func (s BonusRequestStatus) IsTerminal() bool {
	return s == BonusCompleted || s == BonusFailed
}

// CanAdvanceTo проверяет переход состояния запроса
func (s BonusRequestStatus) CanAdvanceTo(next BonusRequestStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == BonusFailed {
		return true
	}
	cur, ok := bonusStatusOrder[s]
	if !ok {
		return false
	}
	nxt, ok := bonusStatusOrder[next]
	return ok && nxt > cur
}

// RetwistStrategy стратегия переформулирования
type RetwistStrategy string

const (
	StrategySynonym     RetwistStrategy = "synonym"
	StrategyParaphrase  RetwistStrategy = "paraphrase"
	StrategyPerspective RetwistStrategy = "perspective"
	StrategyContext     RetwistStrategy = "context"
	StrategyCreative    RetwistStrategy = "creative"
	StrategyHybrid      RetwistStrategy = "hybrid"
)

// IsValid проверяет, что значение входит в закрытый набор
func (s RetwistStrategy) IsValid() bool {
	switch s {
	case StrategySynonym, StrategyParaphrase, StrategyPerspective, StrategyContext, StrategyCreative, StrategyHybrid:
		return true
	}
	return false
}

// RetwistQuality уровень качества переформулирования
type RetwistQuality string

const (
	QualityBasic    RetwistQuality = "basic"
	QualityStandard RetwistQuality = "standard"
	QualityPremium  RetwistQuality = "premium"
)

// IsValid проверяет, что значение входит в закрытый набор
func (q RetwistQuality) IsValid() bool {
	switch q {
	case QualityBasic, QualityStandard, QualityPremium:
		return true
	}
	return false
}

// BonusDestination куда отправляются одобренные вопросы
type BonusDestination string

const (
	DestinationPool       BonusDestination = "pool"
	DestinationTournament BonusDestination = "tournament"
)

// BonusQuestionRequest запрос на бонусные вопросы
type BonusQuestionRequest struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID             uint               `gorm:"not null;index" json:"tenant_id"`
	RequestedBy          uint               `gorm:"not null;index" json:"requested_by"`
	SourceQuestionIDs    UintArray          `gorm:"type:jsonb;not null" json:"source_question_ids"`
	TournamentID         *uint              `gorm:"index" json:"tournament_id,omitempty"`
	UseDirectly          bool               `gorm:"not null;default:false" json:"use_directly"`
	RetwistStrategy      RetwistStrategy    `gorm:"size:20" json:"retwist_strategy,omitempty"`
	RetwistQuality       RetwistQuality     `gorm:"size:20" json:"retwist_quality,omitempty"`
	GenerateVariations   int                `gorm:"not null;default:1" json:"generate_variations"`
	GeneratedQuestionIDs UintArray          `gorm:"type:jsonb;not null" json:"generated_question_ids"`
	Status               BonusRequestStatus `gorm:"size:30;not null;index" json:"status"`
	Progress             int                `gorm:"not null;default:0" json:"progress"`
	Error                string             `gorm:"size:500" json:"error,omitempty"`
	ApprovedBy           *uint              `json:"approved_by,omitempty"`
	Destination          BonusDestination   `gorm:"size:20" json:"destination,omitempty"`
	CreatedAt            time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (BonusQuestionRequest) TableName() string {
	return "bonus_question_requests"
}

// ExpectedCandidates количество вопросов, которое должен произвести пайплайн
func (r *BonusQuestionRequest) ExpectedCandidates() int {
	if r.UseDirectly {
		return len(r.SourceQuestionIDs)
	}
	return r.GenerateVariations * len(r.SourceQuestionIDs)
}

// Clone возвращает глубокую копию запроса
func (r *BonusQuestionRequest) Clone() *BonusQuestionRequest {
	out := *r
	out.SourceQuestionIDs = r.SourceQuestionIDs.Clone()
	out.GeneratedQuestionIDs = r.GeneratedQuestionIDs.Clone()
	if r.TournamentID != nil {
		id := *r.TournamentID
		out.TournamentID = &id
	}
	if r.ApprovedBy != nil {
		id := *r.ApprovedBy
		out.ApprovedBy = &id
	}
	return &out
}

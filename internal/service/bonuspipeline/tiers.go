package bonuspipeline

import (
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// TierRequirement пороги уровня. Уровень достигнут, только если выполнены все три порога.
type TierRequirement struct {
	Tier             int     `mapstructure:"tier" json:"tier" validate:"gte=1,lte=5"`
	PracticeSessions int     `mapstructure:"practice_sessions" json:"practice_sessions" validate:"gte=0"`
	MinimumAccuracy  float64 `mapstructure:"minimum_accuracy" json:"minimum_accuracy" validate:"gte=0,lte=100"`
	StreakDays       int     `mapstructure:"streak_days" json:"streak_days" validate:"gte=0"`
	MaxQuestions     int     `mapstructure:"max_questions" json:"max_questions" validate:"gte=0"`
}

// DefaultTiers возвращает таблицу уровней по умолчанию
func DefaultTiers() []TierRequirement {
	return []TierRequirement{
		{Tier: 1, PracticeSessions: 5, MinimumAccuracy: 50, StreakDays: 1, MaxQuestions: 5},
		{Tier: 2, PracticeSessions: 10, MinimumAccuracy: 60, StreakDays: 3, MaxQuestions: 10},
		{Tier: 3, PracticeSessions: 20, MinimumAccuracy: 70, StreakDays: 5, MaxQuestions: 15},
		{Tier: 4, PracticeSessions: 40, MinimumAccuracy: 80, StreakDays: 10, MaxQuestions: 25},
		{Tier: 5, PracticeSessions: 75, MinimumAccuracy: 85, StreakDays: 20, MaxQuestions: 40},
	}
}

// Meets проверяет все пороги уровня (AND, не OR)
func (t TierRequirement) Meets(a entity.PracticeAnalytics) bool {
	return a.PracticeSessions >= t.PracticeSessions &&
		a.AverageAccuracy >= t.MinimumAccuracy &&
		a.StreakDays >= t.StreakDays
}

// Eligibility доступ пользователя к бонусным вопросам в текущем периоде
type Eligibility struct {
	Tier               int              `json:"tier"`
	Eligible           bool             `json:"eligible"`
	MaxQuestions       int              `json:"max_questions"`
	Claimed            int              `json:"claimed"`
	QuestionsRemaining int              `json:"questions_remaining"`
	NextTier           *TierRequirement `json:"next_tier,omitempty"`
}

// ComputeEligibility определяет наивысший достигнутый уровень и остаток вопросов.
// claimed - количество исходных вопросов в запросах пользователя за период.
func ComputeEligibility(a entity.PracticeAnalytics, tiers []TierRequirement, claimed int) Eligibility {
	var reached *TierRequirement
	for i := range tiers {
		if tiers[i].Meets(a) && (reached == nil || tiers[i].Tier > reached.Tier) {
			reached = &tiers[i]
		}
	}

	reachedTier := 0
	if reached != nil {
		reachedTier = reached.Tier
	}
	var next *TierRequirement
	for i := range tiers {
		if tiers[i].Tier > reachedTier && (next == nil || tiers[i].Tier < next.Tier) {
			t := tiers[i]
			next = &t
		}
	}

	e := Eligibility{Claimed: claimed, NextTier: next}
	if reached == nil {
		return e
	}

	e.Tier = reached.Tier
	e.Eligible = true
	e.MaxQuestions = reached.MaxQuestions
	e.QuestionsRemaining = reached.MaxQuestions - claimed
	if e.QuestionsRemaining < 0 {
		e.QuestionsRemaining = 0
	}
	return e
}

// PeriodStart возвращает начало текущего периода (календарный месяц в UTC)
func PeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ClaimedInPeriod считает исходные вопросы в запросах периода. Неудачные запросы не учитываются.
func ClaimedInPeriod(requests []entity.BonusQuestionRequest) int {
	claimed := 0
	for _, r := range requests {
		if r.Status == entity.BonusFailed {
			continue
		}
		claimed += len(r.SourceQuestionIDs)
	}
	return claimed
}

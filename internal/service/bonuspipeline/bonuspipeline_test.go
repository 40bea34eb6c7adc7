package bonuspipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// ============================================================================
// Уровни доступа
// ============================================================================

func TestComputeEligibility_AndSemantics(t *testing.T) {
	// Arrange: уровень требует {20, 75, 5}, у пользователя {18, 80, 6}
	tiers := []TierRequirement{
		{Tier: 1, PracticeSessions: 20, MinimumAccuracy: 75, StreakDays: 5, MaxQuestions: 10},
	}
	analytics := entity.PracticeAnalytics{PracticeSessions: 18, AverageAccuracy: 80, StreakDays: 6}

	// Act
	e := ComputeEligibility(analytics, tiers, 0)

	// Assert
	assert.False(t, e.Eligible, "Не хватает сессий: уровень не должен быть достигнут (AND, не OR)")
	assert.Equal(t, 0, e.Tier)
	assert.Equal(t, 0, e.QuestionsRemaining)
	require.NotNil(t, e.NextTier)
	assert.Equal(t, 1, e.NextTier.Tier)
}

func TestComputeEligibility_HighestReachedTier(t *testing.T) {
	analytics := entity.PracticeAnalytics{PracticeSessions: 25, AverageAccuracy: 72, StreakDays: 6}

	e := ComputeEligibility(analytics, DefaultTiers(), 4)

	assert.True(t, e.Eligible)
	assert.Equal(t, 3, e.Tier)
	assert.Equal(t, 15, e.MaxQuestions)
	assert.Equal(t, 11, e.QuestionsRemaining, "questionsRemaining = maxQuestions - claimed")
	require.NotNil(t, e.NextTier)
	assert.Equal(t, 4, e.NextTier.Tier)
}

func TestComputeEligibility_RemainingNeverNegative(t *testing.T) {
	analytics := entity.PracticeAnalytics{PracticeSessions: 5, AverageAccuracy: 50, StreakDays: 1}

	e := ComputeEligibility(analytics, DefaultTiers(), 9)

	assert.Equal(t, 1, e.Tier)
	assert.Equal(t, 0, e.QuestionsRemaining)
}

func TestComputeEligibility_TopTierHasNoNext(t *testing.T) {
	analytics := entity.PracticeAnalytics{PracticeSessions: 100, AverageAccuracy: 99, StreakDays: 30}

	e := ComputeEligibility(analytics, DefaultTiers(), 0)

	assert.Equal(t, 5, e.Tier)
	assert.Nil(t, e.NextTier)
}

func TestClaimedInPeriod_IgnoresFailed(t *testing.T) {
	requests := []entity.BonusQuestionRequest{
		{SourceQuestionIDs: entity.UintArray{1, 2}, Status: entity.BonusCompleted},
		{SourceQuestionIDs: entity.UintArray{3}, Status: entity.BonusAwaitingApproval},
		{SourceQuestionIDs: entity.UintArray{4, 5, 6}, Status: entity.BonusFailed},
	}

	assert.Equal(t, 3, ClaimedInPeriod(requests))
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), PeriodStart(now))
}

// ============================================================================
// Прогресс
// ============================================================================

func TestCandidateProgress_Monotonic(t *testing.T) {
	total := 7
	prev := AnalyzedProgress()
	for produced := 0; produced <= total; produced++ {
		p := CandidateProgress(produced, total)
		assert.GreaterOrEqual(t, p, prev, "Прогресс не должен уменьшаться")
		assert.Less(t, p, 100, "100 выставляется только при переходе в awaiting_approval")
		prev = p
	}
	assert.Equal(t, 95, CandidateProgress(total, total))
}

func TestPhaseFor(t *testing.T) {
	// 3 исходных вопроса, 2 вариации: первые три кандидата - переформулирование
	assert.Equal(t, entity.BonusRetwisting, PhaseFor(0, 3))
	assert.Equal(t, entity.BonusRetwisting, PhaseFor(2, 3))
	assert.Equal(t, entity.BonusGeneratingVariations, PhaseFor(3, 3))

	pos, variant := CandidateSource(4, 3)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 1, variant)
}

// ============================================================================
// Переформулирование
// ============================================================================

func TestTemplateRetwister_AllStrategiesKeepContract(t *testing.T) {
	source := entity.Question{
		TenantID:      3,
		Text:          "Who built the ark?",
		Options:       entity.StringArray{"Moses", "Noah", "Abraham", "David"},
		CorrectOption: 1,
		Category:      "Genesis",
		Difficulty:    entity.DifficultyEasy,
		Source:        entity.SourceManual,
	}
	strategies := []entity.RetwistStrategy{
		entity.StrategySynonym, entity.StrategyParaphrase, entity.StrategyPerspective,
		entity.StrategyContext, entity.StrategyCreative, entity.StrategyHybrid,
	}
	qualities := []entity.RetwistQuality{entity.QualityBasic, entity.QualityStandard, entity.QualityPremium}

	r := NewTemplateRetwister()
	for _, strategy := range strategies {
		for _, quality := range qualities {
			t.Run(string(strategy)+"/"+string(quality), func(t *testing.T) {
				out, err := r.Retwist(context.Background(), source, RetwistOptions{Strategy: strategy, Quality: quality, Variant: 1})

				require.NoError(t, err)
				assert.NotEqual(t, source.Text, out.Text, "Текст должен измениться")
				assert.Equal(t, source.Category, out.Category)
				assert.Equal(t, source.Difficulty, out.Difficulty)
				assert.Equal(t, entity.SourceAI, out.Source)
				assert.Equal(t, source.TenantID, out.TenantID)
				require.True(t, out.IsValidOption(out.CorrectOption))
				assert.Equal(t, "Noah", out.Options[out.CorrectOption], "Правильный ответ должен сохраниться")
			})
		}
	}
}

func TestTemplateRetwister_SynonymReplacesWords(t *testing.T) {
	source := entity.Question{Text: "Who built the ark?", Options: entity.StringArray{"A", "B"}}

	out, err := NewTemplateRetwister().Retwist(context.Background(), source, RetwistOptions{Strategy: entity.StrategySynonym})

	require.NoError(t, err)
	assert.Equal(t, "Which person constructed the ark?", out.Text)
}

func TestTemplateRetwister_VariantsDiffer(t *testing.T) {
	source := entity.Question{Text: "Who built the ark?", Options: entity.StringArray{"A", "B"}}
	r := NewTemplateRetwister()

	first, err := r.Retwist(context.Background(), source, RetwistOptions{Strategy: entity.StrategyPerspective, Variant: 0})
	require.NoError(t, err)
	second, err := r.Retwist(context.Background(), source, RetwistOptions{Strategy: entity.StrategyPerspective, Variant: 1})
	require.NoError(t, err)

	assert.NotEqual(t, first.Text, second.Text)
}

func TestTemplateRetwister_Errors(t *testing.T) {
	r := NewTemplateRetwister()

	_, err := r.Retwist(context.Background(), entity.Question{Text: "  "}, RetwistOptions{Strategy: entity.StrategySynonym})
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = r.Retwist(context.Background(), entity.Question{Text: "x", Options: entity.StringArray{"a"}}, RetwistOptions{Strategy: "llm"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Retwist(ctx, entity.Question{Text: "x", Options: entity.StringArray{"a"}}, RetwistOptions{Strategy: entity.StrategySynonym})
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Фоновые задачи
// ============================================================================

func TestJobRunner_CancelPropagatesCause(t *testing.T) {
	// Arrange
	runner := NewJobRunner()
	id := uuid.New()
	started := make(chan struct{})
	causeCh := make(chan error, 1)

	// Act
	err := runner.Start(context.Background(), id, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		causeCh <- context.Cause(ctx)
		return nil
	})
	require.NoError(t, err)
	<-started

	assert.True(t, runner.IsRunning(id))
	assert.ErrorIs(t, runner.Start(context.Background(), id, func(context.Context) error { return nil }), ErrJobAlreadyRunning)
	assert.True(t, runner.Cancel(id))
	runner.Wait()

	// Assert
	assert.True(t, errors.Is(<-causeCh, ErrJobCancelled))
	assert.False(t, runner.IsRunning(id), "После завершения токен отмены удаляется")
	assert.False(t, runner.Cancel(id))
}

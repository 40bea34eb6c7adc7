package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

func TestValidateSelection(t *testing.T) {
	// Arrange: три вопроса "Бытие" и один "Исход" при минимуме 3
	selected := []entity.Question{
		{ID: 1, Category: "Бытие"}, {ID: 2, Category: "Бытие"}, {ID: 3, Category: "Бытие"},
		{ID: 4, Category: "Исход"},
	}

	// Act
	result := ValidateSelection(selected, 3)

	// Assert
	assert.False(t, result.Valid)
	assert.Equal(t, map[string]int{"Бытие": 3, "Исход": 1}, result.CategoryCounts)
	require.Len(t, result.Errors, 1)

	var coverage *CategoryCoverageError
	require.True(t, errors.As(result.Err(), &coverage))
	assert.Equal(t, "Исход", coverage.Category)
	assert.Equal(t, 2, coverage.Needed)
	assert.ErrorIs(t, result.Err(), ErrInsufficientCategoryCoverage)
	assert.ErrorIs(t, result.Err(), apperrors.ErrValidation)
}

func TestValidateSelection_EmptyAndValid(t *testing.T) {
	empty := ValidateSelection(nil, 3)
	assert.False(t, empty.Valid)
	assert.ErrorIs(t, empty.Err(), ErrEmptySelection)

	valid := ValidateSelection([]entity.Question{{ID: 1, Category: "Бытие"}}, 1)
	assert.True(t, valid.Valid)
	assert.NoError(t, valid.Err())
}

func TestAllocator_SelectQuestions_RejectsUnavailable(t *testing.T) {
	f := newFixture(t)
	pool := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 2)
	archived := f.seed(t, 1, "Бытие", entity.StatusArchived, 1)
	foreign := f.seed(t, 2, "Бытие", entity.StatusQuestionPool, 1)

	_, err := f.allocator.SelectQuestions(f.ctx, 1, 10, append(idsOf(pool), archived[0].ID))
	assert.ErrorIs(t, err, ErrQuestionNotAvailable)

	_, err = f.allocator.SelectQuestions(f.ctx, 1, 10, append(idsOf(pool), foreign[0].ID))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	selection, err := f.allocator.SelectQuestions(f.ctx, 1, 10, idsOf(pool))
	require.NoError(t, err)
	assert.Equal(t, idsOf(pool), selection.QuestionIDs)
	assert.False(t, selection.Validation.Valid, "Две из трех - недобор")
	assert.Equal(t, entity.StatusQuestionPool, f.question(t, pool[0].ID).Status, "Выбор не меняет статус")
}

func TestAllocator_AutoFillCategory_Idempotent(t *testing.T) {
	// Arrange
	f := newFixture(t)
	pool := f.seed(t, 1, "Исход", entity.StatusQuestionPool, 5)
	selection, err := f.allocator.SelectQuestions(f.ctx, 1, 10, []uint{pool[4].ID})
	require.NoError(t, err)

	// Act
	first, err := f.allocator.AutoFillCategory(f.ctx, selection, "Исход", 3)
	require.NoError(t, err)
	second, err := f.allocator.AutoFillCategory(f.ctx, first, "Исход", 3)
	require.NoError(t, err)

	// Assert: добираются невыбранные вопросы по возрастанию ID
	assert.Equal(t, []uint{pool[0].ID, pool[1].ID, pool[4].ID}, first.QuestionIDs)
	assert.Equal(t, first.QuestionIDs, second.QuestionIDs, "Повторный вызов ничего не меняет")
	assert.True(t, first.Validation.Valid)
}

func TestAllocator_AutoFillCategory_Exhausted(t *testing.T) {
	f := newFixture(t)
	pool := f.seed(t, 1, "Руфь", entity.StatusQuestionPool, 2)
	selection, err := f.allocator.SelectQuestions(f.ctx, 1, 10, nil)
	require.NoError(t, err)

	filled, err := f.allocator.AutoFillCategory(f.ctx, selection, "Руфь", 3)

	assert.ErrorIs(t, err, ErrCategoryExhausted)
	require.NotNil(t, filled)
	assert.Equal(t, idsOf(pool), filled.QuestionIDs, "Доступные вопросы все равно добавлены")
}

func TestAllocator_SaveConfig_InvalidIsStoredWithoutTransitions(t *testing.T) {
	// Arrange
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 3)
	exodus := f.seed(t, 1, "Исход", entity.StatusQuestionPool, 1)

	// Act
	result, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{
		TenantID:     1,
		TournamentID: 10,
		ActorID:      7,
		QuestionIDs:  append(idsOf(genesis), exodus[0].ID),
	})

	// Assert
	assert.ErrorIs(t, err, ErrInsufficientCategoryCoverage)
	require.NotNil(t, result)
	assert.Equal(t, entity.ValidationInvalid, result.Config.ValidationStatus)
	assert.Empty(t, result.Reserved)

	cfg, err := f.allocator.GetConfig(f.ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, entity.ValidationInvalid, cfg.ValidationStatus)
	assert.Nil(t, cfg.CommittedAt)
	for _, q := range append(genesis, exodus...) {
		assert.Equal(t, entity.StatusQuestionPool, f.question(t, q.ID).Status, "Невалидный набор ничего не резервирует")
	}
}

func TestAllocator_SaveConfig_CommittedSelectionCannotShrink(t *testing.T) {
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 4)

	_, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{TenantID: 1, TournamentID: 10, QuestionIDs: idsOf(genesis[:3])})
	require.NoError(t, err)

	_, err = f.allocator.SaveConfig(f.ctx, SaveConfigInput{TenantID: 1, TournamentID: 10, QuestionIDs: idsOf(genesis[1:4])})
	assert.ErrorIs(t, err, ErrSelectionLocked)

	grown, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{TenantID: 1, TournamentID: 10, QuestionIDs: idsOf(genesis)})
	require.NoError(t, err)
	assert.Equal(t, []uint{genesis[3].ID}, grown.Reserved, "Резервируется только новый вопрос")
}

func TestAllocator_SaveConfig_DelayedNeedsHours(t *testing.T) {
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 3)

	_, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{
		TenantID:     1,
		TournamentID: 10,
		QuestionIDs:  idsOf(genesis),
		ReleaseMode:  entity.ReleaseDelayed,
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAllocator_TournamentLifecycle_ImmediateRelease(t *testing.T) {
	// Arrange
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 3)

	// Act
	saved, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{TenantID: 1, TournamentID: 10, ActorID: 7, QuestionIDs: idsOf(genesis)})
	require.NoError(t, err)
	assert.ElementsMatch(t, idsOf(genesis), saved.Reserved)
	for _, q := range genesis {
		assert.Equal(t, entity.StatusTournamentReserved, f.question(t, q.ID).Status)
	}

	_, err = f.allocator.ActivateTournament(f.ctx, 1, 10, 7)
	require.NoError(t, err)
	for _, q := range genesis {
		assert.Equal(t, entity.StatusTournamentActive, f.question(t, q.ID).Status)
	}

	f.clock.Advance(2 * time.Hour)
	ended, err := f.allocator.EndTournament(f.ctx, 1, 10, 7, f.clock.Now())
	require.NoError(t, err)

	// Assert
	require.NotNil(t, ended.PracticeReleasedAt)
	for _, q := range genesis {
		stored := f.question(t, q.ID)
		assert.Equal(t, entity.StatusQuestionPool, stored.Status, "Немедленный возврат в практику")
		assert.Equal(t, 1, stored.UsageCount)

		history, err := f.lifecycle.History(f.ctx, 1, q.ID)
		require.NoError(t, err)
		require.Len(t, history, 4)
		assert.Equal(t, entity.StatusRecentTournament, history[2].ToStatus, "Сначала RecentTournament, затем пул")
		assert.Equal(t, entity.StatusQuestionPool, history[3].ToStatus)
	}
}

func TestAllocator_DelayedRelease(t *testing.T) {
	// Arrange
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 3)
	_, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{
		TenantID:     1,
		TournamentID: 10,
		QuestionIDs:  idsOf(genesis),
		ReleaseMode:  entity.ReleaseDelayed,
		DelayHours:   intPtr(24),
	})
	require.NoError(t, err)
	_, err = f.allocator.ActivateTournament(f.ctx, 1, 10, 7)
	require.NoError(t, err)
	endedAt := f.clock.Now()
	_, err = f.allocator.EndTournament(f.ctx, 1, 10, 7, endedAt)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRecentTournament, f.question(t, genesis[0].ID).Status)

	// Act & Assert: за час до срока ничего не происходит
	released, err := f.allocator.ReleaseDuePractice(f.ctx, endedAt.Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, released)
	assert.Equal(t, entity.StatusRecentTournament, f.question(t, genesis[0].ID).Status)

	released, err = f.allocator.ReleaseDuePractice(f.ctx, endedAt.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	for _, q := range genesis {
		assert.Equal(t, entity.StatusQuestionPool, f.question(t, q.ID).Status)
	}

	released, err = f.allocator.ReleaseDuePractice(f.ctx, endedAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, released, "Повторный проход ничего не делает")
}

func TestAllocator_ManualRelease(t *testing.T) {
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 3)
	_, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{
		TenantID:     1,
		TournamentID: 10,
		QuestionIDs:  idsOf(genesis),
		ReleaseMode:  entity.ReleaseManual,
	})
	require.NoError(t, err)

	_, err = f.allocator.ReleasePractice(f.ctx, 1, 10, 7)
	assert.ErrorIs(t, err, ErrTournamentNotEnded)

	_, err = f.allocator.ActivateTournament(f.ctx, 1, 10, 7)
	require.NoError(t, err)
	_, err = f.allocator.EndTournament(f.ctx, 1, 10, 7, f.clock.Now())
	require.NoError(t, err)

	released, err := f.allocator.ReleaseDuePractice(f.ctx, f.clock.Now().Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, released, "Ручной режим не возвращается по расписанию")

	_, err = f.allocator.ReleasePractice(f.ctx, 1, 10, 7)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusQuestionPool, f.question(t, genesis[0].ID).Status)

	_, err = f.allocator.ReleasePractice(f.ctx, 1, 10, 7)
	assert.ErrorIs(t, err, ErrAlreadyReleased)
}

func TestAllocator_ActivateRequiresValidCommit(t *testing.T) {
	f := newFixture(t)
	genesis := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 2)
	_, err := f.allocator.SaveConfig(f.ctx, SaveConfigInput{TenantID: 1, TournamentID: 10, QuestionIDs: idsOf(genesis)})
	require.Error(t, err)

	_, err = f.allocator.ActivateTournament(f.ctx, 1, 10, 7)

	assert.ErrorIs(t, err, ErrTournamentNotCommitted)
}

func TestIsReleaseDue(t *testing.T) {
	ended := testStart
	released := testStart.Add(time.Hour)

	tests := []struct {
		name string
		cfg  entity.TournamentQuestionConfig
		now  time.Time
		want bool
	}{
		{"не завершен", entity.TournamentQuestionConfig{PracticeReleaseMode: entity.ReleaseImmediate}, testStart, false},
		{"немедленно", entity.TournamentQuestionConfig{PracticeReleaseMode: entity.ReleaseImmediate, EndedAt: &ended}, testStart, true},
		{"отложенный до срока", entity.TournamentQuestionConfig{PracticeReleaseMode: entity.ReleaseDelayed, DelayHours: 2, EndedAt: &ended}, testStart.Add(time.Hour), false},
		{"отложенный в срок", entity.TournamentQuestionConfig{PracticeReleaseMode: entity.ReleaseDelayed, DelayHours: 2, EndedAt: &ended}, testStart.Add(2 * time.Hour), true},
		{"ручной", entity.TournamentQuestionConfig{PracticeReleaseMode: entity.ReleaseManual, EndedAt: &ended}, testStart.Add(1000 * time.Hour), false},
		{"уже возвращен", entity.TournamentQuestionConfig{PracticeReleaseMode: entity.ReleaseImmediate, EndedAt: &ended, PracticeReleasedAt: &released}, testStart.Add(2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReleaseDue(&tt.cfg, tt.now))
		})
	}
}

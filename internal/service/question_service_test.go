package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

func newQuestionInput(source entity.QuestionSource) CreateQuestionInput {
	return CreateQuestionInput{
		TenantID:      1,
		AuthorID:      7,
		Text:          "  Who led Israel out of Egypt?  ",
		Options:       []string{"Moses", "Aaron", "Joshua"},
		CorrectOption: 0,
		Category:      "Исход",
		Difficulty:    entity.DifficultyEasy,
		Source:        source,
	}
}

func TestQuestionService_CreateQuestion(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	q, err := f.questions.CreateQuestion(f.ctx, newQuestionInput(""))

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, q.ID)
	assert.Equal(t, "Who led Israel out of Egypt?", q.Text, "Текст обрезается")
	assert.Equal(t, entity.StatusDraft, q.Status)
	assert.Equal(t, entity.ApprovalPending, q.ApprovalStatus)
	assert.Equal(t, entity.SourceManual, q.Source, "Источник по умолчанию - manual")

	history, err := f.lifecycle.History(f.ctx, 1, q.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].FromStatus)
	assert.Equal(t, entity.StatusDraft, history[0].ToStatus)
}

func TestQuestionService_CreateQuestion_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(in *CreateQuestionInput)
	}{
		{"пустой текст", func(in *CreateQuestionInput) { in.Text = " " }},
		{"один вариант", func(in *CreateQuestionInput) { in.Options = []string{"Moses"} }},
		{"правильный ответ вне диапазона", func(in *CreateQuestionInput) { in.CorrectOption = 3 }},
		{"неизвестная сложность", func(in *CreateQuestionInput) { in.Difficulty = "extreme" }},
		{"копия не создается вручную", func(in *CreateQuestionInput) { in.Source = entity.SourceManualCopy }},
		{"без категории", func(in *CreateQuestionInput) { in.Category = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newQuestionInput(entity.SourceManual)
			tt.mutate(&in)

			_, err := f.questions.CreateQuestion(f.ctx, in)

			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestQuestionService_SubmitForReview_ManualGoesToPool(t *testing.T) {
	f := newFixture(t)
	q, err := f.questions.CreateQuestion(f.ctx, newQuestionInput(entity.SourceManual))
	require.NoError(t, err)

	submitted, err := f.questions.SubmitForReview(f.ctx, 1, q.ID, 7)

	require.NoError(t, err)
	assert.Equal(t, entity.StatusQuestionPool, submitted.Status)
	assert.Equal(t, entity.ApprovalApproved, submitted.ApprovalStatus)
}

func TestQuestionService_AIQuestionReviewFlow(t *testing.T) {
	// Arrange
	f := newFixture(t)
	q, err := f.questions.CreateQuestion(f.ctx, newQuestionInput(entity.SourceAI))
	require.NoError(t, err)

	// Act: отправка на ревью
	submitted, err := f.questions.SubmitForReview(f.ctx, 1, q.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAIPendingReview, submitted.Status)
	assert.Equal(t, entity.ApprovalPending, submitted.ApprovalStatus)

	// Act: доработка, затем одобрение
	revised, err := f.questions.ReviewQuestion(f.ctx, 1, q.ID, 3, entity.ApprovalNeedsRevision, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAIPendingReview, revised.Status, "needs_revision статус не меняет")

	approved, err := f.questions.ReviewQuestion(f.ctx, 1, q.ID, 3, entity.ApprovalApproved, "")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, entity.StatusQuestionPool, approved.Status)
	assert.Equal(t, entity.ApprovalApproved, approved.ApprovalStatus)

	history, err := f.lifecycle.History(f.ctx, 1, q.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.StatusAIPendingReview, history[2].FromStatus)
	assert.Equal(t, entity.StatusQuestionPool, history[2].ToStatus)
}

func TestQuestionService_ReviewQuestion_RejectedIsFinal(t *testing.T) {
	f := newFixture(t)
	q, err := f.questions.CreateQuestion(f.ctx, newQuestionInput(entity.SourceAI))
	require.NoError(t, err)
	_, err = f.questions.SubmitForReview(f.ctx, 1, q.ID, 7)
	require.NoError(t, err)

	rejected, err := f.questions.ReviewQuestion(f.ctx, 1, q.ID, 3, entity.ApprovalRejected, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAIPendingReview, rejected.Status)

	_, err = f.questions.ReviewQuestion(f.ctx, 1, q.ID, 3, entity.ApprovalApproved, "")
	assert.ErrorIs(t, err, ErrApprovalStatus)

	_, err = f.questions.ReviewQuestion(f.ctx, 1, q.ID, 3, entity.ApprovalPending, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestQuestionService_GetQuestion_TenantIsolation(t *testing.T) {
	f := newFixture(t)
	q := f.seed(t, 1, "Бытие", entity.StatusQuestionPool, 1)[0]

	_, err := f.questions.GetQuestion(f.ctx, 2, q.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := f.questions.GetQuestion(f.ctx, 1, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)
}

package service

import (
	"fmt"

	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
	"github.com/yourusername/bible-tournament-api/internal/service/bonuspipeline"
	"github.com/yourusername/bible-tournament-api/internal/service/quizengine"
)

// Ошибки жизненного цикла и распределения вопросов
var (
	ErrInvalidTransition = fmt.Errorf("invalid lifecycle transition: %w", apperrors.ErrConflict)
	ErrApprovalStatus    = fmt.Errorf("approval status cannot change: %w", apperrors.ErrConflict)

	ErrEmptySelection               = fmt.Errorf("no questions selected: %w", apperrors.ErrValidation)
	ErrInsufficientCategoryCoverage = fmt.Errorf("insufficient category coverage: %w", apperrors.ErrValidation)
	ErrCategoryExhausted            = fmt.Errorf("category exhausted before reaching minimum: %w", apperrors.ErrValidation)
	ErrQuestionNotAvailable         = fmt.Errorf("question is not available for selection: %w", apperrors.ErrConflict)
	ErrSelectionLocked              = fmt.Errorf("committed selection cannot drop questions: %w", apperrors.ErrConflict)
	ErrTournamentNotCommitted       = fmt.Errorf("tournament question set is not committed: %w", apperrors.ErrConflict)
	ErrTournamentNotEnded           = fmt.Errorf("tournament has not ended: %w", apperrors.ErrConflict)
	ErrAlreadyReleased              = fmt.Errorf("questions already released to practice: %w", apperrors.ErrConflict)
)

// Ошибки бонусного пайплайна
var (
	ErrTierLimitExceeded          = bonuspipeline.ErrTierLimitExceeded
	ErrRequestNotAwaitingApproval = fmt.Errorf("request is not awaiting approval: %w", apperrors.ErrConflict)
	ErrUnknownQuestionID          = fmt.Errorf("question id is not part of the request: %w", apperrors.ErrValidation)
	ErrRequestTerminal            = fmt.Errorf("request is already finished: %w", apperrors.ErrConflict)
	ErrNotRequestOwner            = fmt.Errorf("request belongs to another user: %w", apperrors.ErrForbidden)
)

// Ошибки квалификационного теста
var (
	ErrNoQuestionsAvailable     = quizengine.ErrNoQuestionsAvailable
	ErrAttemptAlreadyInProgress = quizengine.ErrAttemptAlreadyInProgress
	ErrAttemptsExhausted        = quizengine.ErrAttemptsExhausted
	ErrFinalScoreNotReady       = quizengine.ErrFinalScoreNotReady
	ErrAttemptNumberMismatch    = fmt.Errorf("attempt number is out of sequence: %w", apperrors.ErrValidation)
	ErrAttemptNotInProgress     = fmt.Errorf("attempt is not in progress: %w", apperrors.ErrConflict)
	ErrAlreadyQualified         = fmt.Errorf("application is already qualified: %w", apperrors.ErrConflict)
)

// CategoryCoverageError категория выбрана, но вопросов в ней меньше минимума
type CategoryCoverageError struct {
	Category string
	Selected int
	Minimum  int
	Needed   int
}

func (e *CategoryCoverageError) Error() string {
	return fmt.Sprintf("category %q needs %d more question(s) (%d of %d selected)", e.Category, e.Needed, e.Selected, e.Minimum)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrInsufficientCategoryCoverage)
func (e *CategoryCoverageError) Unwrap() error {
	return ErrInsufficientCategoryCoverage
}

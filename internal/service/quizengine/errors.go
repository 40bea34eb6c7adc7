package quizengine

import (
	"fmt"

	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

var (
	// ErrNoQuestionsAvailable нет вопросов для теста или для подсчета баллов
	ErrNoQuestionsAvailable = fmt.Errorf("no questions available: %w", apperrors.ErrValidation)
	// ErrAttemptAlreadyInProgress у заявки уже есть незавершенная попытка
	ErrAttemptAlreadyInProgress = fmt.Errorf("attempt already in progress: %w", apperrors.ErrConflict)
	// ErrAttemptsExhausted попытки закончились
	ErrAttemptsExhausted = fmt.Errorf("attempts exhausted: %w", apperrors.ErrConflict)
	// ErrFinalScoreNotReady итоговый балл запрошен до прохождения или исчерпания попыток
	ErrFinalScoreNotReady = fmt.Errorf("final score is not ready: %w", apperrors.ErrConflict)
	// ErrUnknownScoringMethod неизвестный способ агрегации
	ErrUnknownScoringMethod = fmt.Errorf("unknown scoring method: %w", apperrors.ErrValidation)
)

// Package quizengine содержит чистые функции квалификационного теста:
// вывод зерна рандомизации, выбор вопросов, перемешивание вариантов, подсчет баллов и агрегацию попыток.
package quizengine

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// Значения по умолчанию, если организатор турнира не задал свои
const (
	DefaultQuestionsCount   = 10
	DefaultPassPercentage   = 70.0
	DefaultTimeLimitMinutes = 15
	DefaultMaxAttempts      = 3
)

// Config содержит настройки движка теста
type Config struct {
	Defaults entity.QuizSettings

	// ShuffleOptions включает перемешивание вариантов ответа зерном попытки
	ShuffleOptions bool

	// TimeLimitGraceSeconds - запас к лимиту времени перед пометкой TimedOut
	TimeLimitGraceSeconds int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Defaults: entity.QuizSettings{
			QuestionsCount:   DefaultQuestionsCount,
			TimeLimitMinutes: DefaultTimeLimitMinutes,
			PassPercentage:   DefaultPassPercentage,
			ScoringMethod:    entity.ScoringAverage,
			MaxAttempts:      DefaultMaxAttempts,
		},
		ShuffleOptions:        true,
		TimeLimitGraceSeconds: 5,
	}
}

var settingsValidator = validator.New()

// ValidateSettings проверяет настройки теста турнира
func ValidateSettings(s entity.QuizSettings) error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("%w: quiz settings: %v", apperrors.ErrValidation, err)
	}
	return nil
}

// Package bonuspipeline содержит правила бонусных вопросов:
// уровни доступа по статистике практики, стратегии переформулирования,
// расчет прогресса и запуск фоновых задач с отменой.
package bonuspipeline

import (
	"fmt"
	"time"

	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// Константы по умолчанию
const (
	DefaultMaxVariations = 5
)

// Config содержит настройки бонусного пайплайна
type Config struct {
	// Tiers таблица требований уровней, по возрастанию уровня
	Tiers []TierRequirement

	// MaxVariations верхняя граница generateVariations в одном запросе
	MaxVariations int

	// StepDelay пауза между кандидатами; 0 в тестах
	StepDelay time.Duration

	// JobTimeout ограничивает время одной задачи переформулирования
	JobTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Tiers:         DefaultTiers(),
		MaxVariations: DefaultMaxVariations,
		StepDelay:     0,
		JobTimeout:    10 * time.Minute,
	}
}

var (
	// ErrTierLimitExceeded запрошено больше вопросов, чем осталось в периоде
	ErrTierLimitExceeded = fmt.Errorf("tier limit exceeded: %w", apperrors.ErrValidation)
	// ErrJobAlreadyRunning задача по этому запросу уже запущена в процессе
	ErrJobAlreadyRunning = fmt.Errorf("job already running: %w", apperrors.ErrConflict)
)

package repository

import (
	"context"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// TournamentConfigRepository определяет методы для работы с конфигурациями вопросов турниров
type TournamentConfigRepository interface {
	Get(ctx context.Context, tournamentID uint) (*entity.TournamentQuestionConfig, error)
	GetForUpdate(ctx context.Context, tournamentID uint) (*entity.TournamentQuestionConfig, error)
	// Save создает или обновляет конфигурацию
	Save(ctx context.Context, config *entity.TournamentQuestionConfig) error
	// ListAwaitingRelease возвращает завершенные турниры, вопросы которых еще не вернулись в практику
	ListAwaitingRelease(ctx context.Context) ([]entity.TournamentQuestionConfig, error)
}

// QualificationConfigRepository настройки квалификационного теста турнира
type QualificationConfigRepository interface {
	GetByTournament(ctx context.Context, tournamentID uint) (*entity.TournamentQualificationConfig, error)
	Save(ctx context.Context, config *entity.TournamentQualificationConfig) error
}

package repository

import (
	"context"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// ApplicationRepository определяет методы для работы с заявками на турнир.
// Возвращаемые заявки содержат попытки, упорядоченные по номеру.
type ApplicationRepository interface {
	Create(ctx context.Context, application *entity.TournamentApplication) error
	GetByID(ctx context.Context, id uint) (*entity.TournamentApplication, error)
	GetByTournamentAndUser(ctx context.Context, tournamentID, userID uint) (*entity.TournamentApplication, error)
	GetForUpdate(ctx context.Context, id uint) (*entity.TournamentApplication, error)
	// Update сохраняет поля заявки без попыток
	Update(ctx context.Context, application *entity.TournamentApplication) error
}

// AttemptRepository определяет методы для работы с попытками теста
type AttemptRepository interface {
	// Create возвращает ErrActiveAttemptExists, если у заявки уже есть активная попытка
	Create(ctx context.Context, attempt *entity.QuizAttempt) error
	GetByID(ctx context.Context, id uint) (*entity.QuizAttempt, error)
	Update(ctx context.Context, attempt *entity.QuizAttempt) error
}

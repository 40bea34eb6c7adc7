package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// Частичный уникальный индекс: не больше одной попытки in_progress на заявку
const activeAttemptIndex = "idx_quiz_attempts_single_in_progress"

// ApplicationRepo реализует repository.ApplicationRepository
type ApplicationRepo struct {
	db *gorm.DB
}

// NewApplicationRepo создает репозиторий заявок
func NewApplicationRepo(db *gorm.DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

func preloadAttempts(db *gorm.DB) *gorm.DB {
	return db.Preload("QuizAttempts", func(db *gorm.DB) *gorm.DB {
		return db.Order("attempt_number")
	})
}

// Create сохраняет новую заявку
func (r *ApplicationRepo) Create(ctx context.Context, application *entity.TournamentApplication) error {
	err := conn(ctx, r.db).Omit(clause.Associations).Create(application).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: tournament #%d, user #%d",
			repository.ErrDuplicateApplication, application.TournamentID, application.UserID)
	}
	return err
}

// GetByID возвращает заявку с попытками
func (r *ApplicationRepo) GetByID(ctx context.Context, id uint) (*entity.TournamentApplication, error) {
	var app entity.TournamentApplication
	if err := preloadAttempts(conn(ctx, r.db)).First(&app, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &app, nil
}

// GetByTournamentAndUser возвращает заявку пользователя на турнир
func (r *ApplicationRepo) GetByTournamentAndUser(ctx context.Context, tournamentID, userID uint) (*entity.TournamentApplication, error) {
	var app entity.TournamentApplication
	err := preloadAttempts(conn(ctx, r.db)).
		First(&app, "tournament_id = ? AND user_id = ?", tournamentID, userID).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &app, nil
}

// GetForUpdate возвращает заявку с блокировкой строки. Попытки читаются отдельным запросом без блокировки.
func (r *ApplicationRepo) GetForUpdate(ctx context.Context, id uint) (*entity.TournamentApplication, error) {
	db := conn(ctx, r.db)
	var app entity.TournamentApplication
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&app, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	app.QuizAttempts = make([]entity.QuizAttempt, 0)
	if err := db.Where("application_id = ?", id).Order("attempt_number").Find(&app.QuizAttempts).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// Update сохраняет поля заявки без попыток
func (r *ApplicationRepo) Update(ctx context.Context, application *entity.TournamentApplication) error {
	result := conn(ctx, r.db).Omit(clause.Associations).Save(application)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает репозиторий попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Create сохраняет новую попытку.
// Partial unique index idx_quiz_attempts_single_in_progress гарантирует max 1 in_progress на заявку.
// - 23505 на этом индексе → ErrActiveAttemptExists
// - 23505 на номере попытки → ErrConflict
func (r *AttemptRepo) Create(ctx context.Context, attempt *entity.QuizAttempt) error {
	err := conn(ctx, r.db).Create(attempt).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		if constraintName(err) == activeAttemptIndex {
			return fmt.Errorf("%w: application #%d", repository.ErrActiveAttemptExists, attempt.ApplicationID)
		}
		return fmt.Errorf("%w: attempt %d of application #%d already exists",
			apperrors.ErrConflict, attempt.AttemptNumber, attempt.ApplicationID)
	}
	return fmt.Errorf("create attempt for application #%d failed: %w", attempt.ApplicationID, err)
}

// GetByID возвращает попытку
func (r *AttemptRepo) GetByID(ctx context.Context, id uint) (*entity.QuizAttempt, error) {
	var attempt entity.QuizAttempt
	if err := conn(ctx, r.db).First(&attempt, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &attempt, nil
}

// Update сохраняет попытку
func (r *AttemptRepo) Update(ctx context.Context, attempt *entity.QuizAttempt) error {
	return conn(ctx, r.db).Save(attempt).Error
}

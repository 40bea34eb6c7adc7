package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// TournamentConfigRepo реализует repository.TournamentConfigRepository
type TournamentConfigRepo struct {
	db *gorm.DB
}

// NewTournamentConfigRepo создает репозиторий конфигураций турниров
func NewTournamentConfigRepo(db *gorm.DB) *TournamentConfigRepo {
	return &TournamentConfigRepo{db: db}
}

// Get возвращает конфигурацию турнира
func (r *TournamentConfigRepo) Get(ctx context.Context, tournamentID uint) (*entity.TournamentQuestionConfig, error) {
	var cfg entity.TournamentQuestionConfig
	if err := conn(ctx, r.db).First(&cfg, "tournament_id = ?", tournamentID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &cfg, nil
}

// GetForUpdate возвращает конфигурацию с блокировкой строки
func (r *TournamentConfigRepo) GetForUpdate(ctx context.Context, tournamentID uint) (*entity.TournamentQuestionConfig, error) {
	var cfg entity.TournamentQuestionConfig
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cfg, "tournament_id = ?", tournamentID).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &cfg, nil
}

// Save создает или обновляет конфигурацию
func (r *TournamentConfigRepo) Save(ctx context.Context, config *entity.TournamentQuestionConfig) error {
	return conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tournament_id"}}, UpdateAll: true}).
		Create(config).Error
}

// ListAwaitingRelease возвращает завершенные турниры, вопросы которых еще не вернулись в практику
func (r *TournamentConfigRepo) ListAwaitingRelease(ctx context.Context) ([]entity.TournamentQuestionConfig, error) {
	configs := make([]entity.TournamentQuestionConfig, 0)
	err := conn(ctx, r.db).
		Where("ended_at IS NOT NULL AND practice_released_at IS NULL").
		Order("tournament_id").
		Find(&configs).Error
	return configs, err
}

// QualificationConfigRepo реализует repository.QualificationConfigRepository
type QualificationConfigRepo struct {
	db *gorm.DB
}

// NewQualificationConfigRepo создает репозиторий настроек квалификации
func NewQualificationConfigRepo(db *gorm.DB) *QualificationConfigRepo {
	return &QualificationConfigRepo{db: db}
}

// GetByTournament возвращает настройки теста турнира
func (r *QualificationConfigRepo) GetByTournament(ctx context.Context, tournamentID uint) (*entity.TournamentQualificationConfig, error) {
	var cfg entity.TournamentQualificationConfig
	if err := conn(ctx, r.db).First(&cfg, "tournament_id = ?", tournamentID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &cfg, nil
}

// Save создает или обновляет настройки теста
func (r *QualificationConfigRepo) Save(ctx context.Context, config *entity.TournamentQualificationConfig) error {
	return conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tournament_id"}}, UpdateAll: true}).
		Create(config).Error
}

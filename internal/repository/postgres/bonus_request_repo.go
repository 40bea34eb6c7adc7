package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// BonusRequestRepo реализует repository.BonusRequestRepository
type BonusRequestRepo struct {
	db *gorm.DB
}

// NewBonusRequestRepo создает репозиторий бонусных запросов
func NewBonusRequestRepo(db *gorm.DB) *BonusRequestRepo {
	return &BonusRequestRepo{db: db}
}

// Create сохраняет новый запрос
func (r *BonusRequestRepo) Create(ctx context.Context, request *entity.BonusQuestionRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	return conn(ctx, r.db).Create(request).Error
}

// GetByID возвращает запрос по ID
func (r *BonusRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.BonusQuestionRequest, error) {
	var req entity.BonusQuestionRequest
	if err := conn(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &req, nil
}

// GetForUpdate возвращает запрос с блокировкой строки
func (r *BonusRequestRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.BonusQuestionRequest, error) {
	var req entity.BonusQuestionRequest
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &req, nil
}

// Update сохраняет запрос
func (r *BonusRequestRepo) Update(ctx context.Context, request *entity.BonusQuestionRequest) error {
	return conn(ctx, r.db).Save(request).Error
}

// ListByUserSince возвращает запросы пользователя, созданные не раньше since
func (r *BonusRequestRepo) ListByUserSince(ctx context.Context, tenantID, userID uint, since time.Time) ([]entity.BonusQuestionRequest, error) {
	requests := make([]entity.BonusQuestionRequest, 0)
	err := conn(ctx, r.db).
		Where("tenant_id = ? AND requested_by = ? AND created_at >= ?", tenantID, userID, since).
		Order("created_at").
		Find(&requests).Error
	return requests, err
}

// ListResumable возвращает незавершенные запросы с переформулированием
func (r *BonusRequestRepo) ListResumable(ctx context.Context) ([]entity.BonusQuestionRequest, error) {
	requests := make([]entity.BonusQuestionRequest, 0)
	err := conn(ctx, r.db).
		Where("use_directly = ? AND status IN ?", false, []entity.BonusRequestStatus{
			entity.BonusAnalyzing, entity.BonusRetwisting, entity.BonusGeneratingVariations,
		}).
		Order("created_at").
		Find(&requests).Error
	return requests, err
}

// PracticeStatsRepo реализует repository.PracticeStatsRepository.
// Таблицу practice_stats заполняет модуль практики, здесь она только читается.
type PracticeStatsRepo struct {
	db *gorm.DB
}

// NewPracticeStatsRepo создает репозиторий статистики практики
func NewPracticeStatsRepo(db *gorm.DB) *PracticeStatsRepo {
	return &PracticeStatsRepo{db: db}
}

// Get возвращает статистику пользователя
func (r *PracticeStatsRepo) Get(ctx context.Context, tenantID, userID uint) (*entity.PracticeStats, error) {
	var stats entity.PracticeStats
	err := conn(ctx, r.db).First(&stats, "tenant_id = ? AND user_id = ?", tenantID, userID).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &stats, nil
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// BonusRequestRepository определяет методы для работы с бонусными запросами
type BonusRequestRepository interface {
	Create(ctx context.Context, request *entity.BonusQuestionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BonusQuestionRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entity.BonusQuestionRequest, error)
	Update(ctx context.Context, request *entity.BonusQuestionRequest) error
	// ListByUserSince возвращает запросы пользователя, созданные не раньше since
	ListByUserSince(ctx context.Context, tenantID, userID uint, since time.Time) ([]entity.BonusQuestionRequest, error)
	// ListResumable возвращает незавершенные запросы с переформулированием
	ListResumable(ctx context.Context) ([]entity.BonusQuestionRequest, error)
}

// PracticeStatsRepository читает статистику практики, которую ведет модуль практики
type PracticeStatsRepository interface {
	Get(ctx context.Context, tenantID, userID uint) (*entity.PracticeStats, error)
}

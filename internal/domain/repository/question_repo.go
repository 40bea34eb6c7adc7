package repository

import (
	"context"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// QuestionFilter параметры выборки вопросов.
// Пустые поля не участвуют в фильтрации.
type QuestionFilter struct {
	TenantID       uint
	Statuses       []entity.QuestionStatus
	Category       string
	Categories     []string
	ApprovalStatus entity.ApprovalStatus
	ExcludeIDs     []uint
	Limit          int
}

// CategoryStatusCount количество вопросов категории в определенном статусе
type CategoryStatusCount struct {
	Category string
	Status   entity.QuestionStatus
	Count    int64
}

// QuestionRepository определяет методы для работы с вопросами.
// Все списки упорядочены по возрастанию ID.
type QuestionRepository interface {
	Create(ctx context.Context, question *entity.Question) error
	CreateBatch(ctx context.Context, questions []entity.Question) error
	GetByID(ctx context.Context, id uint) (*entity.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]entity.Question, error)
	// GetByIDsForUpdate перечитывает вопросы с блокировкой строк до конца транзакции
	GetByIDsForUpdate(ctx context.Context, ids []uint) ([]entity.Question, error)
	List(ctx context.Context, filter QuestionFilter) ([]entity.Question, error)
	Update(ctx context.Context, question *entity.Question) error
	CountByCategoryAndStatus(ctx context.Context, tenantID uint) ([]CategoryStatusCount, error)
}

// LifecycleLogRepository журнал переходов. Записи только добавляются.
type LifecycleLogRepository interface {
	Append(ctx context.Context, entry *entity.QuestionLifecycleLog) error
	ListByQuestion(ctx context.Context, questionID uint) ([]entity.QuestionLifecycleLog, error)
	// CountByCategorySince считает переходы по категориям вопросов начиная с since
	CountByCategorySince(ctx context.Context, tenantID uint, since time.Time) (map[string]int64, error)
}

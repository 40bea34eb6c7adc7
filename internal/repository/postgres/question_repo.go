package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос
func (r *QuestionRepo) Create(ctx context.Context, question *entity.Question) error {
	return conn(ctx, r.db).Create(question).Error
}

// CreateBatch создает пакет вопросов
func (r *QuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return conn(ctx, r.db).Create(&questions).Error
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	var question entity.Question
	if err := conn(ctx, r.db).First(&question, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &question, nil
}

// GetByIDs возвращает найденные вопросы, упорядоченные по ID
func (r *QuestionRepo) GetByIDs(ctx context.Context, ids []uint) ([]entity.Question, error) {
	questions := make([]entity.Question, 0, len(ids))
	if len(ids) == 0 {
		return questions, nil
	}
	err := conn(ctx, r.db).Where("id IN ?", ids).Order("id").Find(&questions).Error
	return questions, err
}

// GetByIDsForUpdate блокирует строки вопросов до конца транзакции.
// Порядок по ID исключает взаимные блокировки между параллельными транзакциями.
func (r *QuestionRepo) GetByIDsForUpdate(ctx context.Context, ids []uint) ([]entity.Question, error) {
	questions := make([]entity.Question, 0, len(ids))
	if len(ids) == 0 {
		return questions, nil
	}
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&questions).Error
	return questions, err
}

// List возвращает вопросы по фильтру
func (r *QuestionRepo) List(ctx context.Context, filter repository.QuestionFilter) ([]entity.Question, error) {
	query := conn(ctx, r.db).Model(&entity.Question{})
	if filter.TenantID != 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	}
	if filter.ApprovalStatus != "" {
		query = query.Where("approval_status = ?", filter.ApprovalStatus)
	}
	if len(filter.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	questions := make([]entity.Question, 0)
	err := query.Order("id").Find(&questions).Error
	return questions, err
}

// Update обновляет информацию о вопросе
func (r *QuestionRepo) Update(ctx context.Context, question *entity.Question) error {
	return conn(ctx, r.db).Save(question).Error
}

// CountByCategoryAndStatus группирует вопросы тенанта по категории и статусу
func (r *QuestionRepo) CountByCategoryAndStatus(ctx context.Context, tenantID uint) ([]repository.CategoryStatusCount, error) {
	var rows []repository.CategoryStatusCount
	err := conn(ctx, r.db).Model(&entity.Question{}).
		Select("category, status, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("category, status").
		Order("category, status").
		Scan(&rows).Error
	return rows, err
}

// LifecycleLogRepo реализует repository.LifecycleLogRepository
type LifecycleLogRepo struct {
	db *gorm.DB
}

// NewLifecycleLogRepo создает репозиторий журнала переходов
func NewLifecycleLogRepo(db *gorm.DB) *LifecycleLogRepo {
	return &LifecycleLogRepo{db: db}
}

// Append добавляет запись в журнал
func (r *LifecycleLogRepo) Append(ctx context.Context, entry *entity.QuestionLifecycleLog) error {
	return conn(ctx, r.db).Create(entry).Error
}

// ListByQuestion возвращает историю вопроса в порядке добавления
func (r *LifecycleLogRepo) ListByQuestion(ctx context.Context, questionID uint) ([]entity.QuestionLifecycleLog, error) {
	entries := make([]entity.QuestionLifecycleLog, 0)
	err := conn(ctx, r.db).Where("question_id = ?", questionID).Order("id").Find(&entries).Error
	return entries, err
}

// CountByCategorySince считает переходы по категориям вопросов начиная с since
func (r *LifecycleLogRepo) CountByCategorySince(ctx context.Context, tenantID uint, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Category string
		Count    int64
	}
	err := conn(ctx, r.db).Table("question_lifecycle_logs AS l").
		Select("q.category AS category, COUNT(*) AS count").
		Joins("JOIN questions q ON q.id = l.question_id").
		Where("l.tenant_id = ? AND l.created_at >= ?", tenantID, since).
		Group("q.category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Count
	}
	return out, nil
}

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository в памяти
type QuestionRepo struct {
	s *Store
}

// NewQuestionRepo создает репозиторий вопросов поверх хранилища
func NewQuestionRepo(s *Store) *QuestionRepo {
	return &QuestionRepo{s: s}
}

// Create создает новый вопрос и присваивает ему ID
func (r *QuestionRepo) Create(ctx context.Context, question *entity.Question) error {
	defer r.s.lock(ctx)()
	r.s.insertQuestion(question)
	return nil
}

// CreateBatch создает пакет вопросов; ID записываются в переданный срез
func (r *QuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	defer r.s.lock(ctx)()
	for i := range questions {
		r.s.insertQuestion(&questions[i])
	}
	return nil
}

func (s *Store) insertQuestion(q *entity.Question) {
	s.nextQuestionID++
	q.ID = s.nextQuestionID
	now := time.Now()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	s.questions[q.ID] = q.Clone()
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	defer r.s.lock(ctx)()
	q, ok := r.s.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return q.Clone(), nil
}

// GetByIDs возвращает найденные вопросы; отсутствующие ID пропускаются
func (r *QuestionRepo) GetByIDs(ctx context.Context, ids []uint) ([]entity.Question, error) {
	defer r.s.lock(ctx)()
	out := make([]entity.Question, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if q, ok := r.s.questions[id]; ok {
			out = append(out, *q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByIDsForUpdate в памяти совпадает с GetByIDs: транзакция уже держит блокировку хранилища
func (r *QuestionRepo) GetByIDsForUpdate(ctx context.Context, ids []uint) ([]entity.Question, error) {
	return r.GetByIDs(ctx, ids)
}

// List возвращает вопросы по фильтру в порядке возрастания ID
func (r *QuestionRepo) List(ctx context.Context, filter repository.QuestionFilter) ([]entity.Question, error) {
	defer r.s.lock(ctx)()

	statuses := make(map[entity.QuestionStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}
	categories := make(map[string]bool, len(filter.Categories))
	for _, c := range filter.Categories {
		categories[c] = true
	}
	excluded := make(map[uint]bool, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}

	out := make([]entity.Question, 0)
	for _, q := range r.s.questions {
		if filter.TenantID != 0 && q.TenantID != filter.TenantID {
			continue
		}
		if len(statuses) > 0 && !statuses[q.Status] {
			continue
		}
		if filter.Category != "" && q.Category != filter.Category {
			continue
		}
		if len(categories) > 0 && !categories[q.Category] {
			continue
		}
		if filter.ApprovalStatus != "" && q.ApprovalStatus != filter.ApprovalStatus {
			continue
		}
		if excluded[q.ID] {
			continue
		}
		out = append(out, *q.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update сохраняет вопрос
func (r *QuestionRepo) Update(ctx context.Context, question *entity.Question) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.questions[question.ID]; !ok {
		return apperrors.ErrNotFound
	}
	question.UpdatedAt = time.Now()
	r.s.questions[question.ID] = question.Clone()
	return nil
}

// CountByCategoryAndStatus группирует вопросы тенанта по категории и статусу
func (r *QuestionRepo) CountByCategoryAndStatus(ctx context.Context, tenantID uint) ([]repository.CategoryStatusCount, error) {
	defer r.s.lock(ctx)()

	counts := make(map[[2]string]int64)
	for _, q := range r.s.questions {
		if q.TenantID != tenantID {
			continue
		}
		counts[[2]string{q.Category, string(q.Status)}]++
	}

	out := make([]repository.CategoryStatusCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, repository.CategoryStatusCount{
			Category: key[0],
			Status:   entity.QuestionStatus(key[1]),
			Count:    n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// LifecycleLogRepo реализует repository.LifecycleLogRepository в памяти
type LifecycleLogRepo struct {
	s *Store
}

// NewLifecycleLogRepo создает репозиторий журнала переходов
func NewLifecycleLogRepo(s *Store) *LifecycleLogRepo {
	return &LifecycleLogRepo{s: s}
}

// Append добавляет запись в журнал
func (r *LifecycleLogRepo) Append(ctx context.Context, entry *entity.QuestionLifecycleLog) error {
	defer r.s.lock(ctx)()
	r.s.nextLogID++
	entry.ID = r.s.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	stored := *entry
	if entry.Metadata != nil {
		stored.Metadata = make(map[string]interface{}, len(entry.Metadata))
		for k, v := range entry.Metadata {
			stored.Metadata[k] = v
		}
	}
	r.s.logs = append(r.s.logs, stored)
	return nil
}

// ListByQuestion возвращает историю вопроса в порядке добавления
func (r *LifecycleLogRepo) ListByQuestion(ctx context.Context, questionID uint) ([]entity.QuestionLifecycleLog, error) {
	defer r.s.lock(ctx)()
	out := make([]entity.QuestionLifecycleLog, 0)
	for _, e := range r.s.logs {
		if e.QuestionID == questionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// CountByCategorySince считает переходы по категориям вопросов
func (r *LifecycleLogRepo) CountByCategorySince(ctx context.Context, tenantID uint, since time.Time) (map[string]int64, error) {
	defer r.s.lock(ctx)()
	out := make(map[string]int64)
	for _, e := range r.s.logs {
		if e.TenantID != tenantID || e.CreatedAt.Before(since) {
			continue
		}
		q, ok := r.s.questions[e.QuestionID]
		if !ok {
			continue
		}
		out[q.Category]++
	}
	return out, nil
}

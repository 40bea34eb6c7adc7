package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/metrics"
	"github.com/yourusername/bible-tournament-api/internal/pkg/clock"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// LifecycleConfig настройки движка жизненного цикла
type LifecycleConfig struct {
	// MinimumQuestionsPerCategory порог "здоровой" категории в пуле и минимум по умолчанию для турниров
	MinimumQuestionsPerCategory int
	// HealthWindowDays окно, за которое считаются недавние переходы в отчете о категориях
	HealthWindowDays int
}

// DefaultLifecycleConfig возвращает настройки по умолчанию
func DefaultLifecycleConfig() *LifecycleConfig {
	return &LifecycleConfig{
		MinimumQuestionsPerCategory: 10,
		HealthWindowDays:            30,
	}
}

// TransitionInput параметры перехода жизненного цикла
type TransitionInput struct {
	QuestionID uint
	// TenantID ограничивает переход вопросами тенанта; 0 для системных вызовов
	TenantID     uint
	To           entity.QuestionStatus
	Reason       string
	TriggeredBy  entity.TriggeredBy
	ActorID      *uint
	TournamentID *uint
	Metadata     map[string]interface{}
}

// LifecycleService выполняет переходы жизненного цикла вопросов и ведет журнал
type LifecycleService struct {
	tx           repository.Transactor
	questionRepo repository.QuestionRepository
	logRepo      repository.LifecycleLogRepository
	clock        clock.Clock
	config       *LifecycleConfig
}

// NewLifecycleService создает новый сервис жизненного цикла
func NewLifecycleService(
	tx repository.Transactor,
	questionRepo repository.QuestionRepository,
	logRepo repository.LifecycleLogRepository,
	clk clock.Clock,
	config *LifecycleConfig,
) *LifecycleService {
	if config == nil {
		config = DefaultLifecycleConfig()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &LifecycleService{
		tx:           tx,
		questionRepo: questionRepo,
		logRepo:      logRepo,
		clock:        clk,
		config:       config,
	}
}

// Transition переводит вопрос в новый статус.
// Статус, журнал и счетчик использования меняются в одной транзакции.
func (s *LifecycleService) Transition(ctx context.Context, in TransitionInput) (*entity.Question, error) {
	var result *entity.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		questions, err := s.questionRepo.GetByIDsForUpdate(ctx, []uint{in.QuestionID})
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return apperrors.ErrNotFound
		}
		q := &questions[0]
		if err := s.apply(ctx, q, in); err != nil {
			return err
		}
		result = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionMany переводит несколько вопросов в один статус. Либо все переходы выполняются, либо ни один.
func (s *LifecycleService) TransitionMany(ctx context.Context, questionIDs []uint, in TransitionInput) ([]entity.Question, error) {
	var result []entity.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		questions, err := s.questionRepo.GetByIDsForUpdate(ctx, questionIDs)
		if err != nil {
			return err
		}
		if len(questions) != len(uniqueIDs(questionIDs)) {
			return apperrors.ErrNotFound
		}
		for i := range questions {
			step := in
			step.QuestionID = questions[i].ID
			if err := s.apply(ctx, &questions[i], step); err != nil {
				return fmt.Errorf("question %d: %w", questions[i].ID, err)
			}
		}
		result = questions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// apply выполняет переход над уже загруженным вопросом. Вызывается только внутри транзакции.
func (s *LifecycleService) apply(ctx context.Context, q *entity.Question, in TransitionInput) error {
	if in.TenantID != 0 && q.TenantID != in.TenantID {
		return apperrors.ErrNotFound
	}
	if !in.To.IsValid() {
		return fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, in.To)
	}
	from := q.Status
	if !q.CanTransitionTo(in.To) {
		metrics.RejectedTransitions.WithLabelValues(string(from), string(in.To)).Inc()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, in.To)
	}

	triggeredBy := in.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = entity.TriggeredBySystem
	}

	q.Status = in.To
	if in.To == entity.StatusTournamentActive {
		q.UsageCount++
	}
	if err := s.questionRepo.Update(ctx, q); err != nil {
		return fmt.Errorf("failed to update question status: %w", err)
	}

	entry := &entity.QuestionLifecycleLog{
		QuestionID:   q.ID,
		TenantID:     q.TenantID,
		FromStatus:   from,
		ToStatus:     in.To,
		Reason:       in.Reason,
		TriggeredBy:  triggeredBy,
		ActorID:      in.ActorID,
		TournamentID: in.TournamentID,
		Metadata:     in.Metadata,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.logRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append lifecycle log: %w", err)
	}

	metrics.LifecycleTransitions.WithLabelValues(string(from), string(in.To)).Inc()
	log.Printf("[LifecycleService] Вопрос #%d: %s -> %s (%s)", q.ID, from, in.To, in.Reason)
	return nil
}

// History возвращает журнал переходов вопроса в порядке добавления
func (s *LifecycleService) History(ctx context.Context, tenantID, questionID uint) ([]entity.QuestionLifecycleLog, error) {
	q, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if tenantID != 0 && q.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return s.logRepo.ListByQuestion(ctx, questionID)
}

// StatusShare количество вопросов в статусе и его доля
type StatusShare struct {
	Status     entity.QuestionStatus `json:"status"`
	Count      int64                 `json:"count"`
	Percentage float64               `json:"percentage"`
}

// StatusDistribution распределение вопросов тенанта по статусам
type StatusDistribution struct {
	Total    int64         `json:"total"`
	Statuses []StatusShare `json:"statuses"`
}

// CategoryHealth состояние категории вопросов тенанта
type CategoryHealth struct {
	Category            string                           `json:"category"`
	Total               int64                            `json:"total"`
	Available           int64                            `json:"available"`
	AvailablePercentage float64                          `json:"available_percentage"`
	ByStatus            map[entity.QuestionStatus]int64 `json:"by_status"`
	MeetsMinimum        bool                             `json:"meets_minimum"`
	RecentTransitions   int64                            `json:"recent_transitions"`
}

// StatusDistribution считает распределение по всем семи статусам
func (s *LifecycleService) StatusDistribution(ctx context.Context, tenantID uint) (*StatusDistribution, error) {
	counts, err := s.questionRepo.CountByCategoryAndStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	byStatus := make(map[entity.QuestionStatus]int64)
	var total int64
	for _, c := range counts {
		byStatus[c.Status] += c.Count
		total += c.Count
	}

	dist := &StatusDistribution{Total: total}
	for _, st := range entity.AllQuestionStatuses() {
		dist.Statuses = append(dist.Statuses, StatusShare{
			Status:     st,
			Count:      byStatus[st],
			Percentage: percentage(byStatus[st], total),
		})
	}
	return dist, nil
}

// CategoryHealth строит отчет по категориям: текущее состояние плюс активность из журнала
func (s *LifecycleService) CategoryHealth(ctx context.Context, tenantID uint) ([]CategoryHealth, error) {
	counts, err := s.questionRepo.CountByCategoryAndStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	since := s.clock.Now().Add(-time.Duration(s.config.HealthWindowDays) * 24 * time.Hour)
	recent, err := s.logRepo.CountByCategorySince(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent transitions: %w", err)
	}

	byCategory := make(map[string]*CategoryHealth)
	for _, c := range counts {
		h, ok := byCategory[c.Category]
		if !ok {
			h = &CategoryHealth{Category: c.Category, ByStatus: make(map[entity.QuestionStatus]int64)}
			byCategory[c.Category] = h
		}
		h.ByStatus[c.Status] += c.Count
		h.Total += c.Count
		if c.Status == entity.StatusQuestionPool {
			h.Available += c.Count
		}
	}

	out := make([]CategoryHealth, 0, len(byCategory))
	for _, h := range byCategory {
		h.AvailablePercentage = percentage(h.Available, h.Total)
		h.MeetsMinimum = h.Available >= int64(s.config.MinimumQuestionsPerCategory)
		h.RecentTransitions = recent[h.Category]
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// percentage = count/total*100, 0 при пустом total; округление до сотых
func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*100/float64(total)*100) / 100
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

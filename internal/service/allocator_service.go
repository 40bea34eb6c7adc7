package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/metrics"
	"github.com/yourusername/bible-tournament-api/internal/pkg/clock"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// AllocatorConfig настройки распределения вопросов по турнирам
type AllocatorConfig struct {
	DefaultMinimumPerCategory int
	DefaultReleaseMode        entity.PracticeReleaseMode
	DefaultDelayHours         int
}

// DefaultAllocatorConfig возвращает настройки по умолчанию
func DefaultAllocatorConfig() *AllocatorConfig {
	return &AllocatorConfig{
		DefaultMinimumPerCategory: 10,
		DefaultReleaseMode:        entity.ReleaseImmediate,
		DefaultDelayHours:         0,
	}
}

// ValidationResult результат проверки набора вопросов турнира
type ValidationResult struct {
	Valid          bool           `json:"valid"`
	Errors         []error        `json:"-"`
	Messages       []string       `json:"errors"`
	CategoryCounts map[string]int `json:"category_counts"`
}

// Err объединяет ошибки валидации; nil для валидного набора
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.Join(r.Errors...)
}

// ValidateSelection проверяет набор вопросов против минимума по категориям.
// Набор валиден, только если он не пуст и в каждой представленной категории выбрано не меньше minimum.
func ValidateSelection(selected []entity.Question, minimum int) *ValidationResult {
	result := &ValidationResult{CategoryCounts: make(map[string]int)}
	for _, q := range selected {
		result.CategoryCounts[q.Category]++
	}

	if len(selected) == 0 {
		result.Errors = append(result.Errors, ErrEmptySelection)
	}

	categories := make([]string, 0, len(result.CategoryCounts))
	for c := range result.CategoryCounts {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		n := result.CategoryCounts[c]
		if n > 0 && n < minimum {
			result.Errors = append(result.Errors, &CategoryCoverageError{
				Category: c,
				Selected: n,
				Minimum:  minimum,
				Needed:   minimum - n,
			})
		}
	}

	result.Valid = len(result.Errors) == 0
	for _, err := range result.Errors {
		result.Messages = append(result.Messages, err.Error())
	}
	return result
}

// IsReleaseDue сообщает, пора ли вернуть вопросы турнира в практику
func IsReleaseDue(cfg *entity.TournamentQuestionConfig, now time.Time) bool {
	if cfg.IsReleased() {
		return false
	}
	due, ok := cfg.ReleaseDueAt()
	return ok && !now.Before(due)
}

// PendingSelection набор вопросов, который еще не зафиксирован за турниром
type PendingSelection struct {
	TournamentID uint              `json:"tournament_id"`
	TenantID     uint              `json:"tenant_id"`
	Minimum      int               `json:"minimum_questions_per_category"`
	QuestionIDs  []uint            `json:"question_ids"`
	Questions    []entity.Question `json:"-"`
	Validation   *ValidationResult `json:"validation"`
}

func newPendingSelection(tenantID, tournamentID uint, minimum int, questions []entity.Question) *PendingSelection {
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	return &PendingSelection{
		TournamentID: tournamentID,
		TenantID:     tenantID,
		Minimum:      minimum,
		QuestionIDs:  ids,
		Questions:    questions,
		Validation:   ValidateSelection(questions, minimum),
	}
}

// SaveConfigInput параметры сохранения конфигурации турнира
type SaveConfigInput struct {
	TenantID     uint
	TournamentID uint
	ActorID      uint
	QuestionIDs  []uint
	// Minimum, ReleaseMode и DelayHours не меняются, если не заданы
	Minimum     *int
	ReleaseMode entity.PracticeReleaseMode
	DelayHours  *int
}

// SaveConfigResult сохраненная конфигурация и результат валидации
type SaveConfigResult struct {
	Config     *entity.TournamentQuestionConfig `json:"config"`
	Validation *ValidationResult                `json:"validation"`
	Reserved   []uint                           `json:"reserved_question_ids"`
}

// AllocatorService собирает и проверяет наборы вопросов турниров и управляет возвратом вопросов в практику
type AllocatorService struct {
	tx           repository.Transactor
	questionRepo repository.QuestionRepository
	configRepo   repository.TournamentConfigRepository
	lifecycle    *LifecycleService
	clock        clock.Clock
	config       *AllocatorConfig
}

// NewAllocatorService создает новый сервис распределения вопросов
func NewAllocatorService(
	tx repository.Transactor,
	questionRepo repository.QuestionRepository,
	configRepo repository.TournamentConfigRepository,
	lifecycle *LifecycleService,
	clk clock.Clock,
	config *AllocatorConfig,
) *AllocatorService {
	if config == nil {
		config = DefaultAllocatorConfig()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &AllocatorService{
		tx:           tx,
		questionRepo: questionRepo,
		configRepo:   configRepo,
		lifecycle:    lifecycle,
		clock:        clk,
		config:       config,
	}
}

// GetConfig возвращает конфигурацию турнира; для нового турнира - несохраненную с умолчаниями
func (s *AllocatorService) GetConfig(ctx context.Context, tenantID, tournamentID uint) (*entity.TournamentQuestionConfig, error) {
	cfg, err := s.configRepo.Get(ctx, tournamentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.newConfig(tenantID, tournamentID), nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return cfg, nil
}

func (s *AllocatorService) newConfig(tenantID, tournamentID uint) *entity.TournamentQuestionConfig {
	return &entity.TournamentQuestionConfig{
		TournamentID:                tournamentID,
		TenantID:                    tenantID,
		SelectedQuestionIDs:         entity.UintArray{},
		MinimumQuestionsPerCategory: s.config.DefaultMinimumPerCategory,
		PracticeReleaseMode:         s.config.DefaultReleaseMode,
		DelayHours:                  s.config.DefaultDelayHours,
		ValidationStatus:            entity.ValidationPending,
	}
}

// SelectQuestions строит ожидающий набор из кандидатов без изменения статусов.
// Кандидат должен быть в пуле или уже зарезервирован за этим турниром.
func (s *AllocatorService) SelectQuestions(ctx context.Context, tenantID, tournamentID uint, candidateIDs []uint) (*PendingSelection, error) {
	cfg, err := s.GetConfig(ctx, tenantID, tournamentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByIDs(ctx, uniqueIDs(candidateIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if err := checkAvailability(cfg, candidateIDs, questions); err != nil {
		return nil, err
	}
	return newPendingSelection(tenantID, tournamentID, cfg.MinimumQuestionsPerCategory, questions), nil
}

// checkAvailability проверяет, что каждый кандидат найден, принадлежит тенанту и доступен турниру
func checkAvailability(cfg *entity.TournamentQuestionConfig, ids []uint, questions []entity.Question) error {
	byID := make(map[uint]entity.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for _, id := range uniqueIDs(ids) {
		q, ok := byID[id]
		if !ok || q.TenantID != cfg.TenantID {
			return fmt.Errorf("question %d: %w", id, apperrors.ErrNotFound)
		}
		ownReserved := cfg.IsCommitted() && cfg.SelectedQuestionIDs.Contains(id) && q.Status == entity.StatusTournamentReserved
		if q.Status != entity.StatusQuestionPool && !ownReserved {
			return fmt.Errorf("question %d in status %s: %w", id, q.Status, ErrQuestionNotAvailable)
		}
	}
	return nil
}

// AutoFillCategory добавляет в набор невыбранные вопросы пула из категории по возрастанию ID, пока не наберется minimum.
// Если категория исчерпана раньше, возвращает дополненный набор вместе с ErrCategoryExhausted.
// Повторный вызов без изменений в пуле возвращает тот же набор.
func (s *AllocatorService) AutoFillCategory(ctx context.Context, selection *PendingSelection, category string, minimum int) (*PendingSelection, error) {
	if minimum <= 0 {
		minimum = selection.Minimum
	}

	have := 0
	for _, q := range selection.Questions {
		if q.Category == category {
			have++
		}
	}
	if have >= minimum {
		return selection, nil
	}

	candidates, err := s.questionRepo.List(ctx, repository.QuestionFilter{
		TenantID:   selection.TenantID,
		Statuses:   []entity.QuestionStatus{entity.StatusQuestionPool},
		Category:   category,
		ExcludeIDs: selection.QuestionIDs,
		Limit:      minimum - have,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pool questions: %w", err)
	}

	questions := append(append([]entity.Question(nil), selection.Questions...), candidates...)
	filled := newPendingSelection(selection.TenantID, selection.TournamentID, selection.Minimum, questions)

	if have+len(candidates) < minimum {
		return filled, fmt.Errorf("%w: category %q has %d of %d", ErrCategoryExhausted, category, have+len(candidates), minimum)
	}
	return filled, nil
}

// Validate перечитывает сохраненный набор турнира и проверяет его
func (s *AllocatorService) Validate(ctx context.Context, tenantID, tournamentID uint) (*ValidationResult, error) {
	cfg, err := s.GetConfig(ctx, tenantID, tournamentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.GetByIDs(ctx, cfg.SelectedQuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load selected questions: %w", err)
	}
	return ValidateSelection(questions, cfg.MinimumQuestionsPerCategory), nil
}

// SaveConfig сохраняет конфигурацию. Квоты проверяются по состоянию хранилища на момент фиксации.
// Валидный набор резервирует новые вопросы (QuestionPool -> TournamentReserved);
// невалидный сохраняется как черновик без переходов и возвращается вместе с ошибками валидации.
func (s *AllocatorService) SaveConfig(ctx context.Context, in SaveConfigInput) (*SaveConfigResult, error) {
	if in.ReleaseMode != "" && !in.ReleaseMode.IsValid() {
		return nil, fmt.Errorf("%w: unknown practice release mode %q", apperrors.ErrValidation, in.ReleaseMode)
	}
	if in.Minimum != nil && *in.Minimum < 1 {
		return nil, fmt.Errorf("%w: minimum questions per category must be positive", apperrors.ErrValidation)
	}
	if in.DelayHours != nil && *in.DelayHours < 0 {
		return nil, fmt.Errorf("%w: delay hours must not be negative", apperrors.ErrValidation)
	}

	var result *SaveConfigResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cfg, err := s.configRepo.GetForUpdate(ctx, in.TournamentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			cfg = s.newConfig(in.TenantID, in.TournamentID)
		} else if err != nil {
			return err
		}
		if cfg.TenantID != in.TenantID {
			return apperrors.ErrNotFound
		}
		if cfg.ActivatedAt != nil {
			return fmt.Errorf("%w: tournament already started", ErrSelectionLocked)
		}

		ids := uniqueIDs(in.QuestionIDs)
		if cfg.IsCommitted() {
			keep := make(map[uint]bool, len(ids))
			for _, id := range ids {
				keep[id] = true
			}
			for _, id := range cfg.SelectedQuestionIDs {
				if !keep[id] {
					return fmt.Errorf("%w: question %d is reserved", ErrSelectionLocked, id)
				}
			}
		}

		if in.Minimum != nil {
			cfg.MinimumQuestionsPerCategory = *in.Minimum
		}
		if in.ReleaseMode != "" {
			cfg.PracticeReleaseMode = in.ReleaseMode
		}
		if in.DelayHours != nil {
			cfg.DelayHours = *in.DelayHours
		}
		if cfg.PracticeReleaseMode == entity.ReleaseDelayed && cfg.DelayHours <= 0 {
			return fmt.Errorf("%w: delayed release requires delay hours", apperrors.ErrValidation)
		}

		questions, err := s.questionRepo.GetByIDsForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock selected questions: %w", err)
		}
		if err := checkAvailability(cfg, ids, questions); err != nil {
			return err
		}

		validation := ValidateSelection(questions, cfg.MinimumQuestionsPerCategory)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		cfg.SelectedQuestionIDs = entity.UintArray(ids)
		result = &SaveConfigResult{Config: cfg, Validation: validation}

		if !validation.Valid {
			cfg.ValidationStatus = entity.ValidationInvalid
			return s.configRepo.Save(ctx, cfg)
		}

		tournamentID := in.TournamentID
		actorID := in.ActorID
		for i := range questions {
			if questions[i].Status != entity.StatusQuestionPool {
				continue
			}
			if err := s.lifecycle.apply(ctx, &questions[i], TransitionInput{
				TenantID:     in.TenantID,
				To:           entity.StatusTournamentReserved,
				Reason:       "selected for tournament",
				TriggeredBy:  entity.TriggeredByUser,
				ActorID:      &actorID,
				TournamentID: &tournamentID,
			}); err != nil {
				return err
			}
			result.Reserved = append(result.Reserved, questions[i].ID)
		}

		now := s.clock.Now()
		cfg.ValidationStatus = entity.ValidationValid
		if cfg.CommittedAt == nil {
			cfg.CommittedAt = &now
		}
		return s.configRepo.Save(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}

	if !result.Validation.Valid {
		return result, result.Validation.Err()
	}
	log.Printf("[AllocatorService] Турнир #%d: набор из %d вопросов зафиксирован, зарезервировано %d",
		in.TournamentID, len(result.Config.SelectedQuestionIDs), len(result.Reserved))
	return result, nil
}

// ActivateTournament переводит зарезервированные вопросы турнира в TournamentActive
func (s *AllocatorService) ActivateTournament(ctx context.Context, tenantID, tournamentID, actorID uint) (*entity.TournamentQuestionConfig, error) {
	var result *entity.TournamentQuestionConfig
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cfg, err := s.lockConfig(ctx, tenantID, tournamentID)
		if err != nil {
			return err
		}
		if !cfg.IsCommitted() || cfg.ValidationStatus != entity.ValidationValid {
			return ErrTournamentNotCommitted
		}
		if cfg.ActivatedAt != nil {
			return fmt.Errorf("%w: tournament already active", apperrors.ErrConflict)
		}

		if err := s.transitionSelected(ctx, cfg, entity.StatusTournamentReserved, entity.StatusTournamentActive,
			"tournament started", entity.TriggeredByUser, &actorID); err != nil {
			return err
		}

		now := s.clock.Now()
		cfg.ActivatedAt = &now
		if err := s.configRepo.Save(ctx, cfg); err != nil {
			return err
		}
		result = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[AllocatorService] Турнир #%d запущен", tournamentID)
	return result, nil
}

// EndTournament завершает турнир: сначала TournamentActive -> RecentTournament для всех вопросов,
// затем применяется политика возврата в практику.
func (s *AllocatorService) EndTournament(ctx context.Context, tenantID, tournamentID, actorID uint, endedAt time.Time) (*entity.TournamentQuestionConfig, error) {
	var result *entity.TournamentQuestionConfig
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cfg, err := s.lockConfig(ctx, tenantID, tournamentID)
		if err != nil {
			return err
		}
		if cfg.ActivatedAt == nil {
			return fmt.Errorf("%w: tournament was never started", apperrors.ErrConflict)
		}
		if cfg.EndedAt != nil {
			return fmt.Errorf("%w: tournament already ended", apperrors.ErrConflict)
		}

		if err := s.transitionSelected(ctx, cfg, entity.StatusTournamentActive, entity.StatusRecentTournament,
			"tournament ended", entity.TriggeredByUser, &actorID); err != nil {
			return err
		}
		cfg.EndedAt = &endedAt

		if cfg.PracticeReleaseMode == entity.ReleaseImmediate {
			if err := s.release(ctx, cfg, "immediate practice release", entity.TriggeredBySystem, nil, endedAt); err != nil {
				return err
			}
		}

		if err := s.configRepo.Save(ctx, cfg); err != nil {
			return err
		}
		result = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[AllocatorService] Турнир #%d завершен (режим возврата: %s)", tournamentID, result.PracticeReleaseMode)
	return result, nil
}

// ReleasePractice вручную возвращает вопросы завершенного турнира в практику
func (s *AllocatorService) ReleasePractice(ctx context.Context, tenantID, tournamentID, actorID uint) (*entity.TournamentQuestionConfig, error) {
	var result *entity.TournamentQuestionConfig
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cfg, err := s.lockConfig(ctx, tenantID, tournamentID)
		if err != nil {
			return err
		}
		if cfg.EndedAt == nil {
			return ErrTournamentNotEnded
		}
		if cfg.IsReleased() {
			return ErrAlreadyReleased
		}
		if err := s.release(ctx, cfg, "manual practice release", entity.TriggeredByUser, &actorID, s.clock.Now()); err != nil {
			return err
		}
		if err := s.configRepo.Save(ctx, cfg); err != nil {
			return err
		}
		result = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReleaseDuePractice возвращает в практику вопросы всех турниров, для которых наступил срок.
// Каждый турнир обрабатывается в своей транзакции; ошибки одного не останавливают остальные.
func (s *AllocatorService) ReleaseDuePractice(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.configRepo.ListAwaitingRelease(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tournaments awaiting release: %w", err)
	}

	released := 0
	var errs []error
	for i := range pending {
		if !IsReleaseDue(&pending[i], now) {
			continue
		}
		tournamentID := pending[i].TournamentID
		done := false
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			cfg, err := s.configRepo.GetForUpdate(ctx, tournamentID)
			if err != nil {
				return err
			}
			// Конфигурация могла измениться между чтением списка и блокировкой
			if !IsReleaseDue(cfg, now) {
				return nil
			}
			if err := s.release(ctx, cfg, "scheduled practice release", entity.TriggeredBySystem, nil, now); err != nil {
				return err
			}
			done = true
			return s.configRepo.Save(ctx, cfg)
		})
		if err == nil && done {
			released++
		}
		if err != nil {
			log.Printf("[AllocatorService] Ошибка возврата вопросов турнира #%d в практику: %v", tournamentID, err)
			errs = append(errs, fmt.Errorf("tournament %d: %w", tournamentID, err))
		}
	}
	return released, errors.Join(errs...)
}

// release переводит вопросы турнира RecentTournament -> QuestionPool.
// Вопросы, уже ушедшие в архив, пропускаются.
func (s *AllocatorService) release(ctx context.Context, cfg *entity.TournamentQuestionConfig, reason string, by entity.TriggeredBy, actorID *uint, at time.Time) error {
	questions, err := s.questionRepo.GetByIDsForUpdate(ctx, cfg.SelectedQuestionIDs)
	if err != nil {
		return err
	}
	tournamentID := cfg.TournamentID
	count := 0
	for i := range questions {
		if questions[i].Status != entity.StatusRecentTournament {
			continue
		}
		if err := s.lifecycle.apply(ctx, &questions[i], TransitionInput{
			To:           entity.StatusQuestionPool,
			Reason:       reason,
			TriggeredBy:  by,
			ActorID:      actorID,
			TournamentID: &tournamentID,
			Metadata:     map[string]interface{}{"release_mode": string(cfg.PracticeReleaseMode)},
		}); err != nil {
			return err
		}
		count++
	}
	cfg.PracticeReleasedAt = &at
	metrics.PracticeReleases.WithLabelValues(string(cfg.PracticeReleaseMode)).Add(float64(count))
	log.Printf("[AllocatorService] Турнир #%d: %d вопросов возвращено в практику", cfg.TournamentID, count)
	return nil
}

func (s *AllocatorService) transitionSelected(ctx context.Context, cfg *entity.TournamentQuestionConfig, from, to entity.QuestionStatus, reason string, by entity.TriggeredBy, actorID *uint) error {
	questions, err := s.questionRepo.GetByIDsForUpdate(ctx, cfg.SelectedQuestionIDs)
	if err != nil {
		return err
	}
	tournamentID := cfg.TournamentID
	for i := range questions {
		if questions[i].Status != from {
			return fmt.Errorf("question %d in status %s, expected %s: %w", questions[i].ID, questions[i].Status, from, ErrInvalidTransition)
		}
		if err := s.lifecycle.apply(ctx, &questions[i], TransitionInput{
			TenantID:     cfg.TenantID,
			To:           to,
			Reason:       reason,
			TriggeredBy:  by,
			ActorID:      actorID,
			TournamentID: &tournamentID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *AllocatorService) lockConfig(ctx context.Context, tenantID, tournamentID uint) (*entity.TournamentQuestionConfig, error) {
	cfg, err := s.configRepo.GetForUpdate(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if cfg.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return cfg, nil
}

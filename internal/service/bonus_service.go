package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/metrics"
	"github.com/yourusername/bible-tournament-api/internal/pkg/clock"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
	"github.com/yourusername/bible-tournament-api/internal/service/bonuspipeline"
)

const (
	bonusProgressTTL = time.Hour
	bonusClaimTTL    = 30 * time.Second
)

// BonusProgressPublisher рассылает изменения состояния бонусного запроса подписчикам
type BonusProgressPublisher interface {
	PublishBonusProgress(ctx context.Context, request *entity.BonusQuestionRequest)
}

// ReviewNotifier уведомляет модераторов о вопросах, ожидающих одобрения
type ReviewNotifier interface {
	NotifyAwaitingApproval(ctx context.Context, request *entity.BonusQuestionRequest) error
}

// CreateBonusRequestInput параметры запроса бонусных вопросов
type CreateBonusRequestInput struct {
	TenantID           uint
	UserID             uint
	SourceQuestionIDs  []uint
	TournamentID       *uint
	UseDirectly        bool
	Strategy           entity.RetwistStrategy
	Quality            entity.RetwistQuality
	GenerateVariations int
}

// ApproveBonusInput решение по сгенерированным вопросам запроса
type ApproveBonusInput struct {
	TenantID    uint
	RequestID   uuid.UUID
	ApproverID  uint
	QuestionIDs []uint
	Destination entity.BonusDestination
}

// BonusProgress снимок состояния запроса для опроса клиентом
type BonusProgress struct {
	RequestID uuid.UUID                 `json:"request_id"`
	Status    entity.BonusRequestStatus `json:"status"`
	Progress  int                       `json:"progress"`
	Error     string                    `json:"error,omitempty"`
	Generated int                       `json:"generated"`
	Expected  int                       `json:"expected"`
}

// BonusService управляет запросами бонусных вопросов: доступом по уровням,
// фоновым переформулированием и одобрением результатов
type BonusService struct {
	tx           repository.Transactor
	questionRepo repository.QuestionRepository
	logRepo      repository.LifecycleLogRepository
	requestRepo  repository.BonusRequestRepository
	statsRepo    repository.PracticeStatsRepository
	configRepo   repository.TournamentConfigRepository
	cache        repository.CacheRepository
	lifecycle    *LifecycleService
	retwister    bonuspipeline.Retwister
	jobs         *bonuspipeline.JobRunner
	clock        clock.Clock
	config       *bonuspipeline.Config

	publisher BonusProgressPublisher
	notifier  ReviewNotifier
}

// NewBonusService создает новый сервис бонусных вопросов. cache может быть nil.
func NewBonusService(
	tx repository.Transactor,
	questionRepo repository.QuestionRepository,
	logRepo repository.LifecycleLogRepository,
	requestRepo repository.BonusRequestRepository,
	statsRepo repository.PracticeStatsRepository,
	configRepo repository.TournamentConfigRepository,
	cache repository.CacheRepository,
	lifecycle *LifecycleService,
	retwister bonuspipeline.Retwister,
	clk clock.Clock,
	config *bonuspipeline.Config,
) *BonusService {
	if config == nil {
		config = bonuspipeline.DefaultConfig()
	}
	if retwister == nil {
		retwister = bonuspipeline.NewTemplateRetwister()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &BonusService{
		tx:           tx,
		questionRepo: questionRepo,
		logRepo:      logRepo,
		requestRepo:  requestRepo,
		statsRepo:    statsRepo,
		configRepo:   configRepo,
		cache:        cache,
		lifecycle:    lifecycle,
		retwister:    retwister,
		jobs:         bonuspipeline.NewJobRunner(),
		clock:        clk,
		config:       config,
	}
}

// SetProgressPublisher подключает рассылку прогресса (WebSocket)
func (s *BonusService) SetProgressPublisher(p BonusProgressPublisher) {
	s.publisher = p
}

// SetReviewNotifier подключает уведомления модераторов (email)
func (s *BonusService) SetReviewNotifier(n ReviewNotifier) {
	s.notifier = n
}

// GetEligibility возвращает уровень пользователя и остаток бонусных вопросов в текущем месяце
func (s *BonusService) GetEligibility(ctx context.Context, tenantID, userID uint) (*bonuspipeline.Eligibility, error) {
	e, err := s.eligibility(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *BonusService) eligibility(ctx context.Context, tenantID, userID uint) (bonuspipeline.Eligibility, error) {
	var analytics entity.PracticeAnalytics
	stats, err := s.statsRepo.Get(ctx, tenantID, userID)
	switch {
	case err == nil:
		analytics = entity.PracticeAnalytics{
			PracticeSessions: stats.PracticeSessions,
			AverageAccuracy:  stats.AverageAccuracy,
			StreakDays:       stats.StreakDays,
		}
	case errors.Is(err, apperrors.ErrNotFound):
		// Пользователь еще не практиковался
	default:
		return bonuspipeline.Eligibility{}, fmt.Errorf("failed to load practice stats: %w", err)
	}

	requests, err := s.requestRepo.ListByUserSince(ctx, tenantID, userID, bonuspipeline.PeriodStart(s.clock.Now()))
	if err != nil {
		return bonuspipeline.Eligibility{}, fmt.Errorf("failed to list bonus requests: %w", err)
	}
	return bonuspipeline.ComputeEligibility(analytics, s.config.Tiers, bonuspipeline.ClaimedInPeriod(requests)), nil
}

// CreateBonusQuestionRequest создает запрос бонусных вопросов.
// Лимит уровня проверяется в той же транзакции, что и создание запроса.
// С useDirectly исходные вопросы копируются как есть и запрос сразу ждет одобрения.
func (s *BonusService) CreateBonusQuestionRequest(ctx context.Context, in CreateBonusRequestInput) (*entity.BonusQuestionRequest, error) {
	ids := uniqueIDs(in.SourceQuestionIDs)
	if err := s.validateRequest(&in, ids); err != nil {
		return nil, err
	}

	release, err := acquireLock(ctx, s.cache, fmt.Sprintf("lock:bonus_claim:%d:%d", in.TenantID, in.UserID), bonusClaimTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	req := &entity.BonusQuestionRequest{
		ID:                   uuid.New(),
		TenantID:             in.TenantID,
		RequestedBy:          in.UserID,
		SourceQuestionIDs:    entity.UintArray(ids),
		TournamentID:         in.TournamentID,
		UseDirectly:          in.UseDirectly,
		RetwistStrategy:      in.Strategy,
		RetwistQuality:       in.Quality,
		GenerateVariations:   in.GenerateVariations,
		GeneratedQuestionIDs: entity.UintArray{},
		Status:               entity.BonusAnalyzing,
		CreatedAt:            s.clock.Now(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		eligibility, err := s.eligibility(ctx, in.TenantID, in.UserID)
		if err != nil {
			return err
		}
		if len(ids) > eligibility.QuestionsRemaining {
			return fmt.Errorf("%w: requested %d, remaining %d (tier %d)",
				ErrTierLimitExceeded, len(ids), eligibility.QuestionsRemaining, eligibility.Tier)
		}

		sources, err := s.loadSources(ctx, in.TenantID, ids)
		if err != nil {
			return err
		}

		if in.UseDirectly {
			copies, err := s.copySources(ctx, in.UserID, sources)
			if err != nil {
				return err
			}
			req.GeneratedQuestionIDs = copies
			req.Status = entity.BonusAwaitingApproval
			req.Progress = 100
		}
		return s.requestRepo.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[BonusService] Пользователь #%d создал запрос %s на %d вопрос(ов), useDirectly=%v",
		in.UserID, req.ID, len(ids), in.UseDirectly)
	s.publish(ctx, req)
	if req.Status == entity.BonusAwaitingApproval {
		metrics.BonusJobs.WithLabelValues("copied").Inc()
		s.notifyAwaitingApproval(ctx, req)
	}
	return req, nil
}

func (s *BonusService) validateRequest(in *CreateBonusRequestInput, ids []uint) error {
	if in.TenantID == 0 || in.UserID == 0 {
		return fmt.Errorf("%w: tenant and user are required", apperrors.ErrValidation)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one source question is required", apperrors.ErrValidation)
	}
	if in.UseDirectly {
		in.Strategy = ""
		in.Quality = ""
		in.GenerateVariations = 1
		return nil
	}
	if !in.Strategy.IsValid() {
		return fmt.Errorf("%w: unknown retwist strategy %q", apperrors.ErrValidation, in.Strategy)
	}
	if in.Quality == "" {
		in.Quality = entity.QualityStandard
	}
	if !in.Quality.IsValid() {
		return fmt.Errorf("%w: unknown retwist quality %q", apperrors.ErrValidation, in.Quality)
	}
	if in.GenerateVariations == 0 {
		in.GenerateVariations = 1
	}
	if in.GenerateVariations < 1 || in.GenerateVariations > s.config.MaxVariations {
		return fmt.Errorf("%w: generate variations must be between 1 and %d", apperrors.ErrValidation, s.config.MaxVariations)
	}
	return nil
}

// loadSources возвращает исходные вопросы в порядке ids
func (s *BonusService) loadSources(ctx context.Context, tenantID uint, ids []uint) ([]entity.Question, error) {
	questions, err := s.questionRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load source questions: %w", err)
	}
	byID := make(map[uint]entity.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]entity.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok || q.TenantID != tenantID {
			return nil, fmt.Errorf("source question %d: %w", id, apperrors.ErrNotFound)
		}
		out = append(out, q)
	}
	return out, nil
}

// copySources создает по копии каждого исходного вопроса в статусе Draft
func (s *BonusService) copySources(ctx context.Context, userID uint, sources []entity.Question) (entity.UintArray, error) {
	copies := make([]entity.Question, 0, len(sources))
	for _, src := range sources {
		sourceID := src.ID
		copies = append(copies, entity.Question{
			TenantID:         src.TenantID,
			Text:             src.Text,
			Options:          append(entity.StringArray(nil), src.Options...),
			CorrectOption:    src.CorrectOption,
			Category:         src.Category,
			Difficulty:       src.Difficulty,
			Source:           entity.SourceManualCopy,
			Status:           entity.StatusDraft,
			ApprovalStatus:   entity.ApprovalPending,
			SourceQuestionID: &sourceID,
		})
	}
	if err := s.questionRepo.CreateBatch(ctx, copies); err != nil {
		return nil, fmt.Errorf("failed to copy source questions: %w", err)
	}

	ids := make(entity.UintArray, 0, len(copies))
	for _, q := range copies {
		actor := userID
		if err := s.logRepo.Append(ctx, &entity.QuestionLifecycleLog{
			QuestionID:  q.ID,
			TenantID:    q.TenantID,
			ToStatus:    entity.StatusDraft,
			Reason:      "copied for bonus request",
			TriggeredBy: entity.TriggeredByUser,
			ActorID:     &actor,
			CreatedAt:   s.clock.Now(),
		}); err != nil {
			return nil, fmt.Errorf("failed to append lifecycle log: %w", err)
		}
		ids = append(ids, q.ID)
	}
	return ids, nil
}

// RequestActor пользователь, управляющий бонусным запросом.
// Privileged - рецензент или администратор, которым доступны чужие запросы тенанта.
type RequestActor struct {
	TenantID   uint
	UserID     uint
	Privileged bool
}

func (a RequestActor) authorize(req *entity.BonusQuestionRequest) error {
	if req.TenantID != a.TenantID {
		return apperrors.ErrNotFound
	}
	if !a.Privileged && req.RequestedBy != a.UserID {
		return ErrNotRequestOwner
	}
	return nil
}

// RetwistBonusQuestions запускает фоновое переформулирование запроса.
// Состояние сохраняется после каждого кандидата, поэтому прерванная задача продолжается с места остановки.
func (s *BonusService) RetwistBonusQuestions(ctx context.Context, actor RequestActor, requestID uuid.UUID) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if err := actor.authorize(req); err != nil {
		return err
	}
	if req.UseDirectly {
		return fmt.Errorf("%w: request uses source questions directly", apperrors.ErrConflict)
	}
	if req.Status.IsTerminal() || req.Status == entity.BonusAwaitingApproval {
		return fmt.Errorf("%w: status %s", ErrRequestTerminal, req.Status)
	}
	return s.jobs.Start(context.WithoutCancel(ctx), requestID, func(ctx context.Context) error {
		return s.RunRetwist(ctx, requestID)
	})
}

// RunRetwist выполняет переформулирование синхронно. Используется фоновой задачей и тестами.
func (s *BonusService) RunRetwist(ctx context.Context, requestID uuid.UUID) error {
	started := time.Now()
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() || req.Status == entity.BonusAwaitingApproval {
		return nil
	}

	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	sources, err := s.loadSources(ctx, req.TenantID, req.SourceQuestionIDs)
	if err != nil {
		return s.failRequest(ctx, requestID, err.Error())
	}

	if req.Progress < bonuspipeline.AnalyzedProgress() {
		req, err = s.updateRequest(ctx, requestID, func(r *entity.BonusQuestionRequest) {
			r.Progress = bonuspipeline.AnalyzedProgress()
		})
		if err != nil {
			return s.interrupted(ctx, requestID, err)
		}
		s.publish(ctx, req)
	}

	total := req.ExpectedCandidates()
	for k := len(req.GeneratedQuestionIDs); k < total; k++ {
		if ctx.Err() != nil {
			return s.interrupted(ctx, requestID, ctx.Err())
		}

		pos, variant := bonuspipeline.CandidateSource(k, len(sources))
		candidate, err := s.retwister.Retwist(ctx, sources[pos], bonuspipeline.RetwistOptions{
			Strategy: req.RetwistStrategy,
			Quality:  req.RetwistQuality,
			Variant:  variant,
		})
		if err != nil {
			if ctx.Err() != nil {
				return s.interrupted(ctx, requestID, err)
			}
			return s.failRequest(ctx, requestID, fmt.Sprintf("retwist of question %d failed: %v", sources[pos].ID, err))
		}

		req, err = s.storeCandidate(ctx, requestID, k, len(sources), sources[pos].ID, candidate)
		if errors.Is(err, ErrRequestTerminal) {
			log.Printf("[BonusService] Запрос %s завершен во время генерации", requestID)
			return nil
		}
		if err != nil {
			return s.interrupted(ctx, requestID, err)
		}
		s.publish(ctx, req)

		if s.config.StepDelay > 0 {
			select {
			case <-time.After(s.config.StepDelay):
			case <-ctx.Done():
				return s.interrupted(ctx, requestID, ctx.Err())
			}
		}
	}

	req, err = s.updateRequest(ctx, requestID, func(r *entity.BonusQuestionRequest) {
		r.Status = entity.BonusAwaitingApproval
		r.Progress = 100
	})
	if err != nil {
		return s.interrupted(ctx, requestID, err)
	}

	metrics.BonusJobs.WithLabelValues("awaiting_approval").Inc()
	metrics.BonusJobDuration.Observe(time.Since(started).Seconds())
	log.Printf("[BonusService] Запрос %s: сгенерировано %d кандидатов, ожидает одобрения", requestID, len(req.GeneratedQuestionIDs))
	s.publish(ctx, req)
	s.notifyAwaitingApproval(ctx, req)
	return nil
}

// storeCandidate сохраняет кандидата index и продвигает запрос в одной транзакции
func (s *BonusService) storeCandidate(ctx context.Context, requestID uuid.UUID, index, sourceCount int, sourceID uint, candidate entity.Question) (*entity.BonusQuestionRequest, error) {
	var result *entity.BonusQuestionRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requestRepo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			return ErrRequestTerminal
		}
		if len(req.GeneratedQuestionIDs) != index {
			return fmt.Errorf("%w: candidate %d already stored", apperrors.ErrConflict, index)
		}

		q := candidate
		q.ID = 0
		q.TenantID = req.TenantID
		q.Source = entity.SourceAI
		q.Status = entity.StatusDraft
		q.ApprovalStatus = entity.ApprovalPending
		q.SourceQuestionID = &sourceID
		if err := s.questionRepo.Create(ctx, &q); err != nil {
			return fmt.Errorf("failed to create candidate: %w", err)
		}
		requester := req.RequestedBy
		if err := s.logRepo.Append(ctx, &entity.QuestionLifecycleLog{
			QuestionID:  q.ID,
			TenantID:    q.TenantID,
			ToStatus:    entity.StatusDraft,
			Reason:      "generated for bonus request",
			TriggeredBy: entity.TriggeredBySystem,
			ActorID:     &requester,
			CreatedAt:   s.clock.Now(),
		}); err != nil {
			return fmt.Errorf("failed to append lifecycle log: %w", err)
		}
		if err := s.lifecycle.apply(ctx, &q, TransitionInput{
			To:          entity.StatusAIPendingReview,
			Reason:      "retwisted candidate awaiting review",
			TriggeredBy: entity.TriggeredBySystem,
			Metadata: map[string]interface{}{
				"request_id": requestID.String(),
				"strategy":   string(req.RetwistStrategy),
				"quality":    string(req.RetwistQuality),
			},
		}); err != nil {
			return err
		}

		req.GeneratedQuestionIDs = append(req.GeneratedQuestionIDs, q.ID)
		if phase := bonuspipeline.PhaseFor(index, sourceCount); phase != req.Status && req.Status.CanAdvanceTo(phase) {
			req.Status = phase
		}
		if p := bonuspipeline.CandidateProgress(index+1, req.ExpectedCandidates()); p > req.Progress {
			req.Progress = p
		}
		if err := s.requestRepo.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	return result, err
}

// updateRequest применяет mutate к незавершенному запросу под блокировкой
func (s *BonusService) updateRequest(ctx context.Context, requestID uuid.UUID, mutate func(r *entity.BonusQuestionRequest)) (*entity.BonusQuestionRequest, error) {
	var result *entity.BonusQuestionRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requestRepo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			return ErrRequestTerminal
		}
		mutate(req)
		if err := s.requestRepo.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	return result, err
}

// interrupted разбирает причину остановки задачи.
// Отмена пользователем и таймаут завершают запрос ошибкой; остановка процесса оставляет его для возобновления.
func (s *BonusService) interrupted(ctx context.Context, requestID uuid.UUID, err error) error {
	if errors.Is(err, ErrRequestTerminal) {
		return nil
	}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, bonuspipeline.ErrJobCancelled):
		return s.failRequest(ctx, requestID, bonuspipeline.ErrJobCancelled.Error())
	case errors.Is(cause, context.DeadlineExceeded):
		return s.failRequest(ctx, requestID, "timed out")
	case ctx.Err() != nil:
		log.Printf("[BonusService] Задача %s остановлена (%v), будет продолжена после перезапуска", requestID, cause)
		return ctx.Err()
	}
	return s.failRequest(ctx, requestID, err.Error())
}

// failRequest переводит запрос в failed. Уже завершенный запрос не меняется.
func (s *BonusService) failRequest(ctx context.Context, requestID uuid.UUID, reason string) error {
	ctx = context.WithoutCancel(ctx)
	req, err := s.updateRequest(ctx, requestID, func(r *entity.BonusQuestionRequest) {
		r.Status = entity.BonusFailed
		r.Error = reason
	})
	if errors.Is(err, ErrRequestTerminal) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark request %s as failed: %w", requestID, err)
	}
	if reason != bonuspipeline.ErrJobCancelled.Error() {
		metrics.BonusJobs.WithLabelValues("failed").Inc()
	}
	log.Printf("[BonusService] Запрос %s завершен с ошибкой: %s", requestID, reason)
	s.publish(ctx, req)
	return nil
}

// CancelBonusRequest отменяет незавершенный запрос: он переходит в failed с ошибкой "cancelled",
// фоновая задача этого процесса останавливается
func (s *BonusService) CancelBonusRequest(ctx context.Context, actor RequestActor, requestID uuid.UUID) (*entity.BonusQuestionRequest, error) {
	var result *entity.BonusQuestionRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requestRepo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := actor.authorize(req); err != nil {
			return err
		}
		if !req.Status.CanAdvanceTo(entity.BonusFailed) {
			return fmt.Errorf("%w: status %s", ErrRequestTerminal, req.Status)
		}
		req.Status = entity.BonusFailed
		req.Error = bonuspipeline.ErrJobCancelled.Error()
		if err := s.requestRepo.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.jobs.Cancel(requestID) {
		log.Printf("[BonusService] Задача %s отменена", requestID)
	}
	metrics.BonusJobs.WithLabelValues("cancelled").Inc()
	s.publish(ctx, result)
	return result, nil
}

// ApproveBonusQuestions одобряет часть сгенерированных вопросов и завершает запрос.
// Одобренные уходят в пул или резервируются за турниром запроса; остальные помечаются отклоненными.
func (s *BonusService) ApproveBonusQuestions(ctx context.Context, in ApproveBonusInput) (*entity.BonusQuestionRequest, error) {
	if in.Destination == "" {
		in.Destination = entity.DestinationPool
	}
	if in.Destination != entity.DestinationPool && in.Destination != entity.DestinationTournament {
		return nil, fmt.Errorf("%w: unknown destination %q", apperrors.ErrValidation, in.Destination)
	}

	var result *entity.BonusQuestionRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.requestRepo.GetForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.TenantID != in.TenantID {
			return apperrors.ErrNotFound
		}
		if req.Status != entity.BonusAwaitingApproval {
			return fmt.Errorf("%w: status %s", ErrRequestNotAwaitingApproval, req.Status)
		}

		approved := uniqueIDs(in.QuestionIDs)
		approvedSet := make(map[uint]bool, len(approved))
		for _, id := range approved {
			if !req.GeneratedQuestionIDs.Contains(id) {
				return fmt.Errorf("%w: %d", ErrUnknownQuestionID, id)
			}
			approvedSet[id] = true
		}

		var tournamentCfg *entity.TournamentQuestionConfig
		if in.Destination == entity.DestinationTournament && len(approved) > 0 {
			if tournamentCfg, err = s.lockTournament(ctx, req); err != nil {
				return err
			}
		}

		questions, err := s.questionRepo.GetByIDsForUpdate(ctx, req.GeneratedQuestionIDs)
		if err != nil {
			return err
		}
		approverID := in.ApproverID
		for i := range questions {
			q := &questions[i]
			if !approvedSet[q.ID] {
				if q.CanChangeApprovalTo(entity.ApprovalRejected) {
					q.ApprovalStatus = entity.ApprovalRejected
					if err := s.questionRepo.Update(ctx, q); err != nil {
						return err
					}
				}
				continue
			}
			if err := s.approveQuestion(ctx, q, approverID, req, tournamentCfg); err != nil {
				return fmt.Errorf("question %d: %w", q.ID, err)
			}
		}

		if tournamentCfg != nil {
			if err := s.attachToTournament(ctx, tournamentCfg, approved); err != nil {
				return err
			}
		}

		req.Status = entity.BonusCompleted
		req.Progress = 100
		req.ApprovedBy = &approverID
		req.Destination = in.Destination
		if err := s.requestRepo.Update(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BonusJobs.WithLabelValues("completed").Inc()
	log.Printf("[BonusService] Запрос %s одобрен: %d из %d вопросов, назначение %s",
		in.RequestID, len(uniqueIDs(in.QuestionIDs)), len(result.GeneratedQuestionIDs), in.Destination)
	s.publish(ctx, result)
	return result, nil
}

func (s *BonusService) approveQuestion(ctx context.Context, q *entity.Question, approverID uint, req *entity.BonusQuestionRequest, cfg *entity.TournamentQuestionConfig) error {
	if q.Status != entity.StatusDraft && q.Status != entity.StatusAIPendingReview {
		return fmt.Errorf("%w: status %s", ErrInvalidTransition, q.Status)
	}
	if !q.CanChangeApprovalTo(entity.ApprovalApproved) {
		return fmt.Errorf("%w: %s -> approved", ErrApprovalStatus, q.ApprovalStatus)
	}
	q.ApprovalStatus = entity.ApprovalApproved

	meta := map[string]interface{}{"request_id": req.ID.String()}
	if err := s.lifecycle.apply(ctx, q, TransitionInput{
		TenantID:    req.TenantID,
		To:          entity.StatusQuestionPool,
		Reason:      "bonus question approved",
		TriggeredBy: entity.TriggeredByUser,
		ActorID:     &approverID,
		Metadata:    meta,
	}); err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	tournamentID := cfg.TournamentID
	return s.lifecycle.apply(ctx, q, TransitionInput{
		TenantID:     req.TenantID,
		To:           entity.StatusTournamentReserved,
		Reason:       "bonus question reserved for tournament",
		TriggeredBy:  entity.TriggeredByUser,
		ActorID:      &approverID,
		TournamentID: &tournamentID,
		Metadata:     meta,
	})
}

// lockTournament возвращает зафиксированную и еще не начатую конфигурацию турнира запроса
func (s *BonusService) lockTournament(ctx context.Context, req *entity.BonusQuestionRequest) (*entity.TournamentQuestionConfig, error) {
	if req.TournamentID == nil {
		return nil, fmt.Errorf("%w: request has no tournament", apperrors.ErrValidation)
	}
	cfg, err := s.configRepo.GetForUpdate(ctx, *req.TournamentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrTournamentNotCommitted
	}
	if err != nil {
		return nil, err
	}
	if cfg.TenantID != req.TenantID {
		return nil, apperrors.ErrNotFound
	}
	if !cfg.IsCommitted() {
		return nil, ErrTournamentNotCommitted
	}
	if cfg.ActivatedAt != nil {
		return nil, fmt.Errorf("%w: tournament already started", ErrSelectionLocked)
	}
	return cfg, nil
}

// attachToTournament добавляет одобренные вопросы в набор турнира и перепроверяет его
func (s *BonusService) attachToTournament(ctx context.Context, cfg *entity.TournamentQuestionConfig, ids []uint) error {
	merged := uniqueIDs(append(append([]uint(nil), cfg.SelectedQuestionIDs...), ids...))
	questions, err := s.questionRepo.GetByIDs(ctx, merged)
	if err != nil {
		return err
	}
	validation := newPendingSelection(cfg.TenantID, cfg.TournamentID, cfg.MinimumQuestionsPerCategory, questions)
	cfg.SelectedQuestionIDs = entity.UintArray(validation.QuestionIDs)
	cfg.ValidationStatus = entity.ValidationInvalid
	if validation.Validation.Valid {
		cfg.ValidationStatus = entity.ValidationValid
	}
	return s.configRepo.Save(ctx, cfg)
}

// GetRequest возвращает запрос тенанта
func (s *BonusService) GetRequest(ctx context.Context, tenantID uint, requestID uuid.UUID) (*entity.BonusQuestionRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return req, nil
}

// GetProgress возвращает снимок прогресса. Сначала читается кеш, при промахе - хранилище.
func (s *BonusService) GetProgress(ctx context.Context, tenantID uint, requestID uuid.UUID) (*BonusProgress, error) {
	if s.cache != nil {
		var cached struct {
			TenantID uint `json:"tenant_id"`
			BonusProgress
		}
		if err := s.cache.GetJSON(ctx, progressKey(requestID), &cached); err == nil && cached.TenantID == tenantID {
			return &cached.BonusProgress, nil
		}
	}
	req, err := s.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	p := progressOf(req)
	return &p, nil
}

// ListUserRequests возвращает запросы пользователя за текущий период
func (s *BonusService) ListUserRequests(ctx context.Context, tenantID, userID uint) ([]entity.BonusQuestionRequest, error) {
	return s.requestRepo.ListByUserSince(ctx, tenantID, userID, bonuspipeline.PeriodStart(s.clock.Now()))
}

// ResumePending перезапускает задачи, прерванные остановкой процесса
func (s *BonusService) ResumePending(ctx context.Context) (int, error) {
	pending, err := s.requestRepo.ListResumable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list resumable requests: %w", err)
	}
	started := 0
	for _, req := range pending {
		id := req.ID
		err := s.jobs.Start(context.WithoutCancel(ctx), id, func(ctx context.Context) error {
			return s.RunRetwist(ctx, id)
		})
		if errors.Is(err, bonuspipeline.ErrJobAlreadyRunning) {
			continue
		}
		if err != nil {
			return started, err
		}
		started++
	}
	if started > 0 {
		log.Printf("[BonusService] Возобновлено %d задач переформулирования", started)
	}
	return started, nil
}

// Wait ждет завершения фоновых задач
func (s *BonusService) Wait() {
	s.jobs.Wait()
}

// Shutdown останавливает фоновые задачи без изменения их сохраненного состояния
func (s *BonusService) Shutdown() {
	s.jobs.Shutdown()
}

func (s *BonusService) publish(ctx context.Context, req *entity.BonusQuestionRequest) {
	if s.cache != nil {
		snapshot := struct {
			TenantID uint `json:"tenant_id"`
			BonusProgress
		}{TenantID: req.TenantID, BonusProgress: progressOf(req)}
		if err := s.cache.SetJSON(context.WithoutCancel(ctx), progressKey(req.ID), snapshot, bonusProgressTTL); err != nil {
			log.Printf("[BonusService] Не удалось сохранить прогресс %s в кеш: %v", req.ID, err)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishBonusProgress(ctx, req)
	}
}

func (s *BonusService) notifyAwaitingApproval(ctx context.Context, req *entity.BonusQuestionRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAwaitingApproval(context.WithoutCancel(ctx), req); err != nil {
		log.Printf("[BonusService] Не удалось уведомить модераторов о запросе %s: %v", req.ID, err)
	}
}

func progressOf(req *entity.BonusQuestionRequest) BonusProgress {
	return BonusProgress{
		RequestID: req.ID,
		Status:    req.Status,
		Progress:  req.Progress,
		Error:     req.Error,
		Generated: len(req.GeneratedQuestionIDs),
		Expected:  req.ExpectedCandidates(),
	}
}

func progressKey(id uuid.UUID) string {
	return "bonus:progress:" + id.String()
}

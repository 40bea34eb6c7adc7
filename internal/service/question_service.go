package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// CreateQuestionInput данные нового вопроса
type CreateQuestionInput struct {
	TenantID      uint
	AuthorID      uint
	Text          string
	Options       []string
	CorrectOption int
	Category      string
	Difficulty    entity.Difficulty
	Source        entity.QuestionSource
}

// QuestionService предоставляет методы для создания и модерации вопросов
type QuestionService struct {
	tx           repository.Transactor
	questionRepo repository.QuestionRepository
	logRepo      repository.LifecycleLogRepository
	lifecycle    *LifecycleService
}

// NewQuestionService создает новый сервис вопросов
func NewQuestionService(
	tx repository.Transactor,
	questionRepo repository.QuestionRepository,
	logRepo repository.LifecycleLogRepository,
	lifecycle *LifecycleService,
) *QuestionService {
	return &QuestionService{
		tx:           tx,
		questionRepo: questionRepo,
		logRepo:      logRepo,
		lifecycle:    lifecycle,
	}
}

// CreateQuestion создает вопрос в статусе Draft
func (s *QuestionService) CreateQuestion(ctx context.Context, in CreateQuestionInput) (*entity.Question, error) {
	q := &entity.Question{
		TenantID:       in.TenantID,
		Text:           strings.TrimSpace(in.Text),
		Options:        entity.StringArray(in.Options),
		CorrectOption:  in.CorrectOption,
		Category:       strings.TrimSpace(in.Category),
		Difficulty:     in.Difficulty,
		Source:         in.Source,
		Status:         entity.StatusDraft,
		ApprovalStatus: entity.ApprovalPending,
	}
	if q.Source == "" {
		q.Source = entity.SourceManual
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.questionRepo.Create(ctx, q); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		actor := in.AuthorID
		return s.logRepo.Append(ctx, &entity.QuestionLifecycleLog{
			QuestionID:  q.ID,
			TenantID:    q.TenantID,
			ToStatus:    entity.StatusDraft,
			Reason:      "created",
			TriggeredBy: entity.TriggeredByUser,
			ActorID:     &actor,
			CreatedAt:   s.lifecycle.clock.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[QuestionService] Создан вопрос #%d (тенант %d, категория %q, источник %s)", q.ID, q.TenantID, q.Category, q.Source)
	return q, nil
}

func validateQuestion(q *entity.Question) error {
	switch {
	case q.TenantID == 0:
		return fmt.Errorf("%w: tenant is required", apperrors.ErrValidation)
	case q.Text == "":
		return fmt.Errorf("%w: question text is required", apperrors.ErrValidation)
	case q.Category == "":
		return fmt.Errorf("%w: category is required", apperrors.ErrValidation)
	case len(q.Options) < 2:
		return fmt.Errorf("%w: at least two options are required", apperrors.ErrValidation)
	case !q.IsValidOption(q.CorrectOption):
		return fmt.Errorf("%w: correct option %d is out of range", apperrors.ErrValidation, q.CorrectOption)
	case !q.Difficulty.IsValid():
		return fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, q.Difficulty)
	case q.Source != entity.SourceManual && q.Source != entity.SourceAI:
		return fmt.Errorf("%w: unknown source %q", apperrors.ErrValidation, q.Source)
	}
	return nil
}

// SubmitForReview отправляет черновик дальше по пайплайну.
// AI вопросы уходят на ревью, ручные попадают в пул сразу и считаются одобренными.
func (s *QuestionService) SubmitForReview(ctx context.Context, tenantID, questionID, actorID uint) (*entity.Question, error) {
	var result *entity.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		q, err := s.loadForUpdate(ctx, tenantID, questionID)
		if err != nil {
			return err
		}

		to := entity.StatusAIPendingReview
		reason := "submitted for review"
		if q.Source.SkipsReview() {
			to = entity.StatusQuestionPool
			reason = "manual question added to pool"
			if !q.CanChangeApprovalTo(entity.ApprovalApproved) {
				return ErrApprovalStatus
			}
			q.ApprovalStatus = entity.ApprovalApproved
		}

		if err := s.lifecycle.apply(ctx, q, TransitionInput{
			TenantID:    tenantID,
			To:          to,
			Reason:      reason,
			TriggeredBy: entity.TriggeredByUser,
			ActorID:     &actorID,
		}); err != nil {
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

// ReviewQuestion записывает решение модератора.
// approved переводит вопрос из AIPendingReview в пул; rejected и needs_revision статус не меняют.
func (s *QuestionService) ReviewQuestion(ctx context.Context, tenantID, questionID, reviewerID uint, decision entity.ApprovalStatus, reason string) (*entity.Question, error) {
	if decision == entity.ApprovalPending {
		return nil, fmt.Errorf("%w: decision must be approved, rejected or needs_revision", apperrors.ErrValidation)
	}

	var result *entity.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		q, err := s.loadForUpdate(ctx, tenantID, questionID)
		if err != nil {
			return err
		}
		if !q.CanChangeApprovalTo(decision) {
			return fmt.Errorf("%w: %s -> %s", ErrApprovalStatus, q.ApprovalStatus, decision)
		}
		q.ApprovalStatus = decision

		if decision != entity.ApprovalApproved {
			if err := s.questionRepo.Update(ctx, q); err != nil {
				return fmt.Errorf("failed to update approval status: %w", err)
			}
			result = q
			return nil
		}

		if q.Status != entity.StatusAIPendingReview {
			return fmt.Errorf("%w: only questions awaiting review can be approved (status %s)", ErrInvalidTransition, q.Status)
		}
		if reason == "" {
			reason = "approved by reviewer"
		}
		if err := s.lifecycle.apply(ctx, q, TransitionInput{
			TenantID:    tenantID,
			To:          entity.StatusQuestionPool,
			Reason:      reason,
			TriggeredBy: entity.TriggeredByUser,
			ActorID:     &reviewerID,
		}); err != nil {
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

// GetQuestion возвращает вопрос тенанта
func (s *QuestionService) GetQuestion(ctx context.Context, tenantID, questionID uint) (*entity.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return q, nil
}

// ListQuestions возвращает вопросы тенанта по фильтру
func (s *QuestionService) ListQuestions(ctx context.Context, filter repository.QuestionFilter) ([]entity.Question, error) {
	if filter.TenantID == 0 {
		return nil, fmt.Errorf("%w: tenant is required", apperrors.ErrValidation)
	}
	return s.questionRepo.List(ctx, filter)
}

func (s *QuestionService) loadForUpdate(ctx context.Context, tenantID, questionID uint) (*entity.Question, error) {
	questions, err := s.questionRepo.GetByIDsForUpdate(ctx, []uint{questionID})
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 || questions[0].TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return &questions[0], nil
}

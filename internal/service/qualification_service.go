package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/metrics"
	"github.com/yourusername/bible-tournament-api/internal/pkg/clock"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
	"github.com/yourusername/bible-tournament-api/internal/service/quizengine"
)

const attemptStartLockTTL = 30 * time.Second

// AttemptQuestion вопрос попытки в том виде, в котором его видит участник
type AttemptQuestion struct {
	ID         uint              `json:"id"`
	Text       string            `json:"text"`
	Options    []string          `json:"options"`
	Category   string            `json:"category"`
	Difficulty entity.Difficulty `json:"difficulty"`
}

// AttemptView начатая попытка вместе с вопросами
type AttemptView struct {
	Attempt   *entity.QuizAttempt `json:"attempt"`
	Questions []AttemptQuestion   `json:"questions"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
}

// SubmitResult итог отправленной попытки
type SubmitResult struct {
	Attempt     *entity.QuizAttempt           `json:"attempt"`
	Application *entity.TournamentApplication `json:"application"`
	Correct     int                           `json:"correct"`
	Total       int                           `json:"total"`
}

// QualificationService проводит квалификационные тесты турниров
type QualificationService struct {
	tx              repository.Transactor
	questionRepo    repository.QuestionRepository
	applicationRepo repository.ApplicationRepository
	attemptRepo     repository.AttemptRepository
	settingsRepo    repository.QualificationConfigRepository
	cache           repository.CacheRepository
	clock           clock.Clock
	config          *quizengine.Config
}

// NewQualificationService создает новый сервис квалификации. cache может быть nil.
func NewQualificationService(
	tx repository.Transactor,
	questionRepo repository.QuestionRepository,
	applicationRepo repository.ApplicationRepository,
	attemptRepo repository.AttemptRepository,
	settingsRepo repository.QualificationConfigRepository,
	cache repository.CacheRepository,
	clk clock.Clock,
	config *quizengine.Config,
) *QualificationService {
	if config == nil {
		config = quizengine.DefaultConfig()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &QualificationService{
		tx:              tx,
		questionRepo:    questionRepo,
		applicationRepo: applicationRepo,
		attemptRepo:     attemptRepo,
		settingsRepo:    settingsRepo,
		cache:           cache,
		clock:           clk,
		config:          config,
	}
}

// GetSettings возвращает настройки теста турнира или настройки по умолчанию
func (s *QualificationService) GetSettings(ctx context.Context, tenantID, tournamentID uint) (entity.QuizSettings, error) {
	cfg, err := s.settingsRepo.GetByTournament(ctx, tournamentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.config.Defaults, nil
	}
	if err != nil {
		return entity.QuizSettings{}, fmt.Errorf("failed to load qualification settings: %w", err)
	}
	if cfg.TenantID != tenantID {
		return entity.QuizSettings{}, apperrors.ErrNotFound
	}
	return cfg.Settings(), nil
}

// SaveSettings сохраняет настройки теста турнира
func (s *QualificationService) SaveSettings(ctx context.Context, tenantID, tournamentID uint, settings entity.QuizSettings) (*entity.TournamentQualificationConfig, error) {
	if err := quizengine.ValidateSettings(settings); err != nil {
		return nil, err
	}
	cfg := &entity.TournamentQualificationConfig{
		TournamentID:     tournamentID,
		TenantID:         tenantID,
		QuestionsCount:   settings.QuestionsCount,
		TimeLimitMinutes: settings.TimeLimitMinutes,
		PassPercentage:   settings.PassPercentage,
		ScoringMethod:    settings.ScoringMethod,
		MaxAttempts:      settings.MaxAttempts,
		Categories:       entity.StringArray(settings.Categories),
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.settingsRepo.GetByTournament(ctx, tournamentID)
		if err == nil && existing.TenantID != tenantID {
			return apperrors.ErrNotFound
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return s.settingsRepo.Save(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateApplication регистрирует заявку пользователя на турнир
func (s *QualificationService) CreateApplication(ctx context.Context, tenantID, userID, tournamentID uint) (*entity.TournamentApplication, error) {
	var result *entity.TournamentApplication
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.createApplication(ctx, tenantID, userID, tournamentID)
		if err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[QualificationService] Пользователь #%d подал заявку на турнир #%d", userID, tournamentID)
	return result, nil
}

func (s *QualificationService) createApplication(ctx context.Context, tenantID, userID, tournamentID uint) (*entity.TournamentApplication, error) {
	settings, err := s.GetSettings(ctx, tenantID, tournamentID)
	if err != nil {
		return nil, err
	}
	app := &entity.TournamentApplication{
		TenantID:          tenantID,
		TournamentID:      tournamentID,
		UserID:            userID,
		Status:            entity.ApplicationPending,
		AttemptsRemaining: settings.MaxAttempts,
		QuizAttempts:      []entity.QuizAttempt{},
	}
	if err := s.applicationRepo.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicateApplication) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return app, nil
}

// GetApplication возвращает заявку пользователя вместе с попытками
func (s *QualificationService) GetApplication(ctx context.Context, tenantID, userID, tournamentID uint) (*entity.TournamentApplication, error) {
	app, err := s.applicationRepo.GetByTournamentAndUser(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	if app.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return app, nil
}

// StartAttempt начинает попытку attemptNumber. Вопросы и порядок вариантов
// определяются зерном (тенант, пользователь, турнир, номер попытки), поэтому
// повторный расчет для тех же входных данных дает ту же попытку.
func (s *QualificationService) StartAttempt(ctx context.Context, tenantID, userID, tournamentID uint, attemptNumber int) (*AttemptView, error) {
	settings, err := s.GetSettings(ctx, tenantID, tournamentID)
	if err != nil {
		return nil, err
	}

	release, err := acquireLock(ctx, s.cache, fmt.Sprintf("lock:quiz_attempt:%d:%d", tournamentID, userID), attemptStartLockTTL)
	switch {
	case errors.Is(err, errLockHeld):
		return nil, ErrAttemptAlreadyInProgress
	case err != nil:
		return nil, fmt.Errorf("failed to acquire attempt lock: %w", err)
	}
	defer release()

	var view *AttemptView
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.lockApplication(ctx, tenantID, userID, tournamentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			app, err = s.createApplication(ctx, tenantID, userID, tournamentID)
			// Заявку успел создать параллельный первый старт
			if errors.Is(err, repository.ErrDuplicateApplication) {
				return ErrAttemptAlreadyInProgress
			}
		}
		if err != nil {
			return err
		}

		switch {
		case app.Status == entity.ApplicationQualified:
			return ErrAlreadyQualified
		case app.ActiveAttempt() != nil:
			return ErrAttemptAlreadyInProgress
		case app.AttemptsRemaining <= 0 || app.Status == entity.ApplicationNotQualified:
			return ErrAttemptsExhausted
		case attemptNumber != app.NextAttemptNumber():
			return fmt.Errorf("%w: expected %d, got %d", ErrAttemptNumberMismatch, app.NextAttemptNumber(), attemptNumber)
		}

		candidates, err := s.questionRepo.List(ctx, repository.QuestionFilter{
			TenantID:       tenantID,
			Statuses:       []entity.QuestionStatus{entity.StatusQuestionPool},
			ApprovalStatus: entity.ApprovalApproved,
			Categories:     settings.Categories,
		})
		if err != nil {
			return fmt.Errorf("failed to list quiz candidates: %w", err)
		}

		seed := quizengine.DeriveSeed(tenantID, userID, tournamentID, attemptNumber)
		plan, err := quizengine.BuildAttemptPlan(candidates, settings.QuestionsCount, seed, s.config.ShuffleOptions)
		if err != nil {
			return err
		}

		attempt := &entity.QuizAttempt{
			ApplicationID:     app.ID,
			AttemptNumber:     attemptNumber,
			Status:            entity.AttemptInProgress,
			QuestionsShown:    entity.UintArray(plan.QuestionIDs),
			OptionOrders:      plan.OptionOrders,
			Answers:           entity.AnswerMap{},
			RandomizationSeed: seed,
			StartedAt:         s.clock.Now(),
		}
		if err := s.attemptRepo.Create(ctx, attempt); err != nil {
			if errors.Is(err, repository.ErrActiveAttemptExists) {
				return ErrAttemptAlreadyInProgress
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		app.Status = entity.ApplicationQuizInProgress
		if err := s.applicationRepo.Update(ctx, app); err != nil {
			return err
		}

		view = buildAttemptView(attempt, candidates, settings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[QualificationService] Пользователь #%d начал попытку %d теста турнира #%d (%d вопросов)",
		userID, attemptNumber, tournamentID, len(view.Questions))
	return view, nil
}

func buildAttemptView(attempt *entity.QuizAttempt, candidates []entity.Question, settings entity.QuizSettings) *AttemptView {
	byID := make(map[uint]entity.Question, len(candidates))
	for _, q := range candidates {
		byID[q.ID] = q
	}
	view := &AttemptView{Attempt: attempt, Questions: make([]AttemptQuestion, 0, len(attempt.QuestionsShown))}
	for _, id := range attempt.QuestionsShown {
		q := byID[id]
		view.Questions = append(view.Questions, AttemptQuestion{
			ID:         q.ID,
			Text:       q.Text,
			Options:    quizengine.DisplayedOptions(q, attempt.OptionOrders[id]),
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
	}
	if settings.TimeLimitMinutes > 0 {
		expires := attempt.StartedAt.Add(time.Duration(settings.TimeLimitMinutes) * time.Minute)
		view.ExpiresAt = &expires
	}
	return view
}

// SubmitAttempt принимает ответы (индексы в показанном порядке), оценивает попытку и обновляет заявку.
// Каждая отправленная попытка уменьшает AttemptsRemaining ровно на единицу.
func (s *QualificationService) SubmitAttempt(ctx context.Context, tenantID, userID, tournamentID, attemptID uint, answers map[uint]int) (*SubmitResult, error) {
	settings, err := s.GetSettings(ctx, tenantID, tournamentID)
	if err != nil {
		return nil, err
	}

	var result *SubmitResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.lockApplication(ctx, tenantID, userID, tournamentID)
		if err != nil {
			return err
		}
		attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.ApplicationID != app.ID {
			return apperrors.ErrNotFound
		}
		if attempt.Status != entity.AttemptInProgress {
			return ErrAttemptNotInProgress
		}

		attempt.Answers = entity.AnswerMap{}
		for _, id := range attempt.QuestionsShown {
			if idx, ok := answers[id]; ok {
				attempt.Answers[id] = idx
			}
		}

		questions, err := s.questionRepo.GetByIDs(ctx, attempt.QuestionsShown)
		if err != nil {
			return fmt.Errorf("failed to load attempt questions: %w", err)
		}
		byID := make(map[uint]entity.Question, len(questions))
		for _, q := range questions {
			byID[q.ID] = q
		}
		score, err := quizengine.ScoreAttempt(attempt, byID, settings.PassPercentage)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		attempt.Status = entity.AttemptSubmitted
		attempt.Score = score.Percent
		attempt.Passed = score.Passed
		attempt.SubmittedAt = &now
		attempt.TimeTaken = int(now.Sub(attempt.StartedAt).Seconds())
		if settings.TimeLimitMinutes > 0 {
			attempt.TimedOut = attempt.TimeTaken > settings.TimeLimitMinutes*60+s.config.TimeLimitGraceSeconds
		}
		if err := s.attemptRepo.Update(ctx, attempt); err != nil {
			return err
		}

		for i := range app.QuizAttempts {
			if app.QuizAttempts[i].ID == attempt.ID {
				app.QuizAttempts[i] = *attempt
			}
		}
		if app.AttemptsRemaining > 0 {
			app.AttemptsRemaining--
		}
		switch {
		case score.Passed:
			app.Status = entity.ApplicationQualified
		case app.AttemptsRemaining == 0:
			app.Status = entity.ApplicationNotQualified
		default:
			app.Status = entity.ApplicationAwaitingRetry
		}
		if app.Status.IsFinal() {
			final, err := quizengine.FinalScore(app.SubmittedScores(), settings.ScoringMethod)
			if err != nil {
				return err
			}
			app.FinalScore = &final
		}
		if err := s.applicationRepo.Update(ctx, app); err != nil {
			return err
		}

		result = &SubmitResult{Attempt: attempt, Application: app, Correct: score.Correct, Total: score.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "failed"
	if result.Attempt.Passed {
		outcome = "passed"
	}
	metrics.QuizAttempts.WithLabelValues(outcome).Inc()
	log.Printf("[QualificationService] Попытка #%d пользователя #%d: %.2f%% (%s), осталось попыток %d",
		attemptID, userID, result.Attempt.Score, outcome, result.Application.AttemptsRemaining)
	return result, nil
}

// FinalScore возвращает итоговый балл заявки. Доступен только после прохождения или исчерпания попыток.
func (s *QualificationService) FinalScore(ctx context.Context, tenantID, userID, tournamentID uint) (float64, error) {
	app, err := s.GetApplication(ctx, tenantID, userID, tournamentID)
	if err != nil {
		return 0, err
	}
	if !app.Status.IsFinal() {
		return 0, ErrFinalScoreNotReady
	}
	settings, err := s.GetSettings(ctx, tenantID, tournamentID)
	if err != nil {
		return 0, err
	}
	return quizengine.FinalScore(app.SubmittedScores(), settings.ScoringMethod)
}

func (s *QualificationService) lockApplication(ctx context.Context, tenantID, userID, tournamentID uint) (*entity.TournamentApplication, error) {
	app, err := s.applicationRepo.GetByTournamentAndUser(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	if app.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	// GetForUpdate перечитывает строку с блокировкой
	return s.applicationRepo.GetForUpdate(ctx, app.ID)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/handler/dto"
	"github.com/yourusername/bible-tournament-api/internal/service"
)

// QuestionHandler обрабатывает запросы банка вопросов тенанта
type QuestionHandler struct {
	questionService  *service.QuestionService
	lifecycleService *service.LifecycleService
}

// NewQuestionHandler создает новый обработчик вопросов
func NewQuestionHandler(questionService *service.QuestionService, lifecycleService *service.LifecycleService) *QuestionHandler {
	return &QuestionHandler{
		questionService:  questionService,
		lifecycleService: lifecycleService,
	}
}

// CreateQuestion создает вопрос в статусе draft
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req dto.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Source == "" {
		req.Source = entity.SourceManual
	}

	userID, tenantID := identity(c)
	q, err := h.questionService.CreateQuestion(c.Request.Context(), service.CreateQuestionInput{
		TenantID:      tenantID,
		AuthorID:      userID,
		Text:          req.Text,
		Options:       req.Options,
		CorrectOption: *req.CorrectOption,
		Category:      req.Category,
		Difficulty:    req.Difficulty,
		Source:        req.Source,
	})
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewQuestionResponse(q))
}

// GetQuestion возвращает вопрос тенанта
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	_, tenantID := identity(c)
	q, err := h.questionService.GetQuestion(c.Request.Context(), tenantID, c.MustGet("questionID").(uint))
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionResponse(q))
}

// ListQuestions возвращает вопросы тенанта с фильтрами status, category и approval_status
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	_, tenantID := identity(c)
	filter := repository.QuestionFilter{
		TenantID:       tenantID,
		Category:       c.Query("category"),
		ApprovalStatus: entity.ApprovalStatus(c.Query("approval_status")),
	}
	for _, s := range c.QueryArray("status") {
		filter.Statuses = append(filter.Statuses, entity.QuestionStatus(s))
	}

	questions, err := h.questionService.ListQuestions(c.Request.Context(), filter)
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionListResponse(questions))
}

// SubmitForReview отправляет черновик на модерацию
func (h *QuestionHandler) SubmitForReview(c *gin.Context) {
	userID, tenantID := identity(c)
	q, err := h.questionService.SubmitForReview(c.Request.Context(), tenantID, c.MustGet("questionID").(uint), userID)
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionResponse(q))
}

// ReviewQuestion записывает решение модератора
func (h *QuestionHandler) ReviewQuestion(c *gin.Context) {
	var req dto.ReviewQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, tenantID := identity(c)
	q, err := h.questionService.ReviewQuestion(c.Request.Context(), tenantID, c.MustGet("questionID").(uint), userID, req.Decision, req.Reason)
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionResponse(q))
}

// Transition выполняет ручной переход жизненного цикла (например, архивирование)
func (h *QuestionHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, tenantID := identity(c)
	q, err := h.lifecycleService.Transition(c.Request.Context(), service.TransitionInput{
		QuestionID:  c.MustGet("questionID").(uint),
		TenantID:    tenantID,
		To:          req.To,
		Reason:      req.Reason,
		TriggeredBy: entity.TriggeredByUser,
		ActorID:     &userID,
	})
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewQuestionResponse(q))
}

// History возвращает журнал переходов вопроса
func (h *QuestionHandler) History(c *gin.Context) {
	_, tenantID := identity(c)
	logs, err := h.lifecycleService.History(c.Request.Context(), tenantID, c.MustGet("questionID").(uint))
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// StatusDistribution распределение вопросов тенанта по статусам
func (h *QuestionHandler) StatusDistribution(c *gin.Context) {
	_, tenantID := identity(c)
	dist, err := h.lifecycleService.StatusDistribution(c.Request.Context(), tenantID)
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

// CategoryHealth отчет о здоровье категорий
func (h *QuestionHandler) CategoryHealth(c *gin.Context) {
	_, tenantID := identity(c)
	report, err := h.lifecycleService.CategoryHealth(c.Request.Context(), tenantID)
	if err != nil {
		handleError(c, "QuestionHandler", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

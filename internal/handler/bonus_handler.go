package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/handler/dto"
	"github.com/yourusername/bible-tournament-api/internal/middleware"
	"github.com/yourusername/bible-tournament-api/internal/service"
	"github.com/yourusername/bible-tournament-api/pkg/auth"
)

// BonusHandler обрабатывает запросы бонусных вопросов
type BonusHandler struct {
	bonusService *service.BonusService
}

// NewBonusHandler создает новый обработчик бонусных вопросов
func NewBonusHandler(bonusService *service.BonusService) *BonusHandler {
	return &BonusHandler{bonusService: bonusService}
}

// GetEligibility возвращает уровень пользователя и остаток бонусных вопросов
func (h *BonusHandler) GetEligibility(c *gin.Context) {
	userID, tenantID := identity(c)
	eligibility, err := h.bonusService.GetEligibility(c.Request.Context(), tenantID, userID)
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusOK, eligibility)
}

// CreateRequest создает запрос и сразу запускает переформулирование
func (h *BonusHandler) CreateRequest(c *gin.Context) {
	var req dto.CreateBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, tenantID := identity(c)
	created, err := h.bonusService.CreateBonusQuestionRequest(ctx, service.CreateBonusRequestInput{
		TenantID:           tenantID,
		UserID:             userID,
		SourceQuestionIDs:  req.SourceQuestionIDs,
		TournamentID:       req.TournamentID,
		UseDirectly:        req.UseDirectly,
		Strategy:           req.Strategy,
		Quality:            req.Quality,
		GenerateVariations: req.GenerateVariations,
	})
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}

	if created.Status == entity.BonusAnalyzing {
		if err := h.bonusService.RetwistBonusQuestions(ctx, requestActor(c), created.ID); err != nil {
			// Запрос сохранен, задачу можно перезапустить через /retwist
			log.Printf("[BonusHandler] Не удалось запустить задачу для %s: %v", created.ID, err)
			c.Header("X-Bonus-Job-Warning", err.Error())
		}
	}
	c.JSON(http.StatusAccepted, created)
}

// Retwist перезапускает фоновую задачу запроса
func (h *BonusHandler) Retwist(c *gin.Context) {
	requestID := c.MustGet("requestID").(uuid.UUID)
	if err := h.bonusService.RetwistBonusQuestions(c.Request.Context(), requestActor(c), requestID); err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": requestID})
}

// GetRequest возвращает запрос
func (h *BonusHandler) GetRequest(c *gin.Context) {
	_, tenantID := identity(c)
	req, err := h.bonusService.GetRequest(c.Request.Context(), tenantID, c.MustGet("requestID").(uuid.UUID))
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GetProgress возвращает прогресс запроса для опроса клиентом
func (h *BonusHandler) GetProgress(c *gin.Context) {
	_, tenantID := identity(c)
	progress, err := h.bonusService.GetProgress(c.Request.Context(), tenantID, c.MustGet("requestID").(uuid.UUID))
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// ListMyRequests возвращает запросы текущего пользователя
func (h *BonusHandler) ListMyRequests(c *gin.Context) {
	userID, tenantID := identity(c)
	requests, err := h.bonusService.ListUserRequests(c.Request.Context(), tenantID, userID)
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// Approve одобряет сгенерированные вопросы в пул или в турнир
func (h *BonusHandler) Approve(c *gin.Context) {
	var req dto.ApproveBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, tenantID := identity(c)
	result, err := h.bonusService.ApproveBonusQuestions(c.Request.Context(), service.ApproveBonusInput{
		TenantID:    tenantID,
		RequestID:   c.MustGet("requestID").(uuid.UUID),
		ApproverID:  userID,
		QuestionIDs: req.QuestionIDs,
		Destination: req.Destination,
	})
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Cancel отменяет незавершенный запрос
func (h *BonusHandler) Cancel(c *gin.Context) {
	result, err := h.bonusService.CancelBonusRequest(c.Request.Context(), requestActor(c), c.MustGet("requestID").(uuid.UUID))
	if err != nil {
		handleError(c, "BonusHandler", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// requestActor чужими запросами управляют только роли с правом одобрения бонусов
func requestActor(c *gin.Context) service.RequestActor {
	userID, tenantID := identity(c)
	role, _ := c.Get(middleware.ContextRole)
	r, _ := role.(auth.Role)
	return service.RequestActor{
		TenantID:   tenantID,
		UserID:     userID,
		Privileged: auth.HasPermission(r, auth.CapApproveBonus),
	}
}

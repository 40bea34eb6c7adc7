package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/bible-tournament-api/internal/handler/dto"
	"github.com/yourusername/bible-tournament-api/internal/service"
)

// TournamentHandler обрабатывает запросы наборов вопросов турниров и настроек квалификации
type TournamentHandler struct {
	allocator     *service.AllocatorService
	qualification *service.QualificationService
}

// NewTournamentHandler создает новый обработчик турниров
func NewTournamentHandler(allocator *service.AllocatorService, qualification *service.QualificationService) *TournamentHandler {
	return &TournamentHandler{
		allocator:     allocator,
		qualification: qualification,
	}
}

// GetConfig возвращает конфигурацию вопросов турнира
func (h *TournamentHandler) GetConfig(c *gin.Context) {
	_, tenantID := identity(c)
	cfg, err := h.allocator.GetConfig(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint))
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// SelectQuestions собирает предварительный набор без сохранения.
// Категории из auto_fill добираются до минимума вопросами из пула.
func (h *TournamentHandler) SelectQuestions(c *gin.Context) {
	var req dto.SelectQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	_, tenantID := identity(c)
	selection, err := h.allocator.SelectQuestions(ctx, tenantID, c.MustGet("tournamentID").(uint), req.QuestionIDs)
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	resp := dto.SelectionResponse{PendingSelection: selection, Warnings: []string{}}
	for _, category := range req.AutoFill {
		filled, err := h.allocator.AutoFillCategory(ctx, resp.PendingSelection, category, 0)
		if errors.Is(err, service.ErrCategoryExhausted) {
			// В пуле не хватило вопросов: отдаем то, что удалось добрать
			resp.PendingSelection = filled
			resp.Warnings = append(resp.Warnings, err.Error())
			continue
		}
		if err != nil {
			handleError(c, "TournamentHandler", err)
			return
		}
		resp.PendingSelection = filled
	}
	c.JSON(http.StatusOK, resp)
}

// Validate проверяет сохраненный набор вопросов турнира
func (h *TournamentHandler) Validate(c *gin.Context) {
	_, tenantID := identity(c)
	result, err := h.allocator.Validate(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint))
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SaveConfig сохраняет набор вопросов. Невалидный набор сохраняется, но вопросы не резервируются.
func (h *TournamentHandler) SaveConfig(c *gin.Context) {
	var req dto.SaveTournamentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, tenantID := identity(c)
	result, err := h.allocator.SaveConfig(c.Request.Context(), service.SaveConfigInput{
		TenantID:     tenantID,
		TournamentID: c.MustGet("tournamentID").(uint),
		ActorID:      userID,
		QuestionIDs:  req.QuestionIDs,
		Minimum:      req.Minimum,
		ReleaseMode:  req.ReleaseMode,
		DelayHours:   req.DelayHours,
	})
	if result != nil && result.Validation != nil && !result.Validation.Valid {
		// Набор сохранен как невалидный, клиенту нужен разбор по категориям
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Activate запускает турнир
func (h *TournamentHandler) Activate(c *gin.Context) {
	userID, tenantID := identity(c)
	cfg, err := h.allocator.ActivateTournament(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint), userID)
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// End завершает турнир и применяет политику возврата в практику
func (h *TournamentHandler) End(c *gin.Context) {
	var req dto.EndTournamentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	endedAt := time.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}

	userID, tenantID := identity(c)
	cfg, err := h.allocator.EndTournament(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint), userID, endedAt)
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ReleasePractice вручную возвращает вопросы завершенного турнира в практику
func (h *TournamentHandler) ReleasePractice(c *gin.Context) {
	userID, tenantID := identity(c)
	cfg, err := h.allocator.ReleasePractice(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint), userID)
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// GetQualificationSettings возвращает настройки квалификационного теста
func (h *TournamentHandler) GetQualificationSettings(c *gin.Context) {
	_, tenantID := identity(c)
	settings, err := h.qualification.GetSettings(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint))
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SaveQualificationSettings сохраняет настройки квалификационного теста
func (h *TournamentHandler) SaveQualificationSettings(c *gin.Context) {
	var req dto.QualificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	_, tenantID := identity(c)
	cfg, err := h.qualification.SaveSettings(c.Request.Context(), tenantID, c.MustGet("tournamentID").(uint), req.ToSettings())
	if err != nil {
		handleError(c, "TournamentHandler", err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

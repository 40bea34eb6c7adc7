package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/bible-tournament-api/internal/handler/dto"
	"github.com/yourusername/bible-tournament-api/internal/service"
)

// QualificationHandler обрабатывает заявки и попытки квалификационного теста
type QualificationHandler struct {
	qualification *service.QualificationService
}

// NewQualificationHandler создает новый обработчик квалификации
func NewQualificationHandler(qualification *service.QualificationService) *QualificationHandler {
	return &QualificationHandler{qualification: qualification}
}

// Apply создает заявку текущего пользователя на турнир
func (h *QualificationHandler) Apply(c *gin.Context) {
	userID, tenantID := identity(c)
	app, err := h.qualification.CreateApplication(c.Request.Context(), tenantID, userID, c.MustGet("tournamentID").(uint))
	if err != nil {
		handleError(c, "QualificationHandler", err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// GetApplication возвращает заявку текущего пользователя вместе с попытками
func (h *QualificationHandler) GetApplication(c *gin.Context) {
	userID, tenantID := identity(c)
	app, err := h.qualification.GetApplication(c.Request.Context(), tenantID, userID, c.MustGet("tournamentID").(uint))
	if err != nil {
		handleError(c, "QualificationHandler", err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// StartAttempt начинает попытку и возвращает вопросы с перемешанными вариантами
func (h *QualificationHandler) StartAttempt(c *gin.Context) {
	var req dto.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, tenantID := identity(c)
	view, err := h.qualification.StartAttempt(c.Request.Context(), tenantID, userID, c.MustGet("tournamentID").(uint), req.AttemptNumber)
	if err != nil {
		handleError(c, "QualificationHandler", err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAttemptResponse(view))
}

// SubmitAttempt принимает ответы и возвращает результат
func (h *QualificationHandler) SubmitAttempt(c *gin.Context) {
	var req dto.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	answers, err := req.ParseAnswers()
	if err != nil {
		badRequest(c, err)
		return
	}

	userID, tenantID := identity(c)
	result, err := h.qualification.SubmitAttempt(c.Request.Context(), tenantID, userID,
		c.MustGet("tournamentID").(uint), c.MustGet("attemptID").(uint), answers)
	if err != nil {
		handleError(c, "QualificationHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSubmitAttemptResponse(result))
}

// FinalScore возвращает итоговый балл заявки
func (h *QualificationHandler) FinalScore(c *gin.Context) {
	userID, tenantID := identity(c)
	score, err := h.qualification.FinalScore(c.Request.Context(), tenantID, userID, c.MustGet("tournamentID").(uint))
	if err != nil {
		handleError(c, "QualificationHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"final_score": score})
}

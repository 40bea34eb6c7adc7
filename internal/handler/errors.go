package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/bible-tournament-api/internal/domain/repository"
	"github.com/yourusername/bible-tournament-api/internal/middleware"
	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
	"github.com/yourusername/bible-tournament-api/internal/service"
)

// handleError переводит ошибки сервисов в HTTP ответы
func handleError(c *gin.Context, component string, err error) {
	var coverage *service.CategoryCoverageError
	switch {
	case errors.As(err, &coverage):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    err.Error(),
			"category": coverage.Category,
			"selected": coverage.Selected,
			"minimum":  coverage.Minimum,
			"needed":   coverage.Needed,
		})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, repository.ErrActiveAttemptExists),
		errors.Is(err, repository.ErrDuplicateApplication):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("ERROR: Internal server error in %s: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// badRequest ответ на некорректное тело запроса
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
}

// identity возвращает пользователя и тенанта, которых положил middleware.RequireAuth
func identity(c *gin.Context) (userID, tenantID uint) {
	return c.GetUint(middleware.ContextUserID), c.GetUint(middleware.ContextTenantID)
}

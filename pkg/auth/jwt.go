// Package auth проверяет токены, выданные сервисом аутентификации тенанта,
// и содержит таблицу прав ролей движка турниров.
package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

// Role роль пользователя внутри тенанта
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleEditor      Role = "editor"
	RoleReviewer    Role = "reviewer"
	RoleParticipant Role = "participant"
)

// Capability действие, на которое проверяются права
type Capability string

const (
	CapManageQuestions   Capability = "questions:manage"
	CapReviewQuestions   Capability = "questions:review"
	CapManageTournaments Capability = "tournaments:manage"
	CapRequestBonus      Capability = "bonus:request"
	CapApproveBonus      Capability = "bonus:approve"
	CapTakeQuiz          Capability = "quiz:take"
	CapViewAnalytics     Capability = "analytics:view"
)

var permissions = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapManageQuestions: true, CapReviewQuestions: true, CapManageTournaments: true,
		CapRequestBonus: true, CapApproveBonus: true, CapTakeQuiz: true, CapViewAnalytics: true,
	},
	RoleEditor: {
		CapManageQuestions: true, CapRequestBonus: true, CapViewAnalytics: true,
	},
	RoleReviewer: {
		CapReviewQuestions: true, CapApproveBonus: true, CapViewAnalytics: true,
	},
	RoleParticipant: {
		CapRequestBonus: true, CapTakeQuiz: true,
	},
}

// HasPermission сообщает, разрешено ли роли действие
func HasPermission(role Role, capability Capability) bool {
	return permissions[role][capability]
}

// Claims содержит пользовательские поля токена
type Claims struct {
	UserID   uint `json:"user_id"`
	TenantID uint `json:"tenant_id"`
	Role     Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTService проверяет токены с общим HMAC секретом
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService создает сервис проверки токенов
func NewJWTService(secret, issuer string) (*JWTService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	return &JWTService{secret: []byte(secret), issuer: issuer}, nil
}

// GenerateToken подписывает токен. Используется служебной командой и тестами.
func (s *JWTService) GenerateToken(userID, tenantID uint, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, срок действия и издателя токена
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, fmt.Errorf("token is malformed: %w", apperrors.ErrUnauthorized)
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				log.Printf("[JWT] Токен истек для пользователя ID=%d", claims.UserID)
				return nil, apperrors.ErrExpiredToken
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				log.Printf("[JWT] Неверная подпись токена для пользователя ID=%d", claims.UserID)
				return nil, fmt.Errorf("signature is invalid: %w", apperrors.ErrUnauthorized)
			}
		}
		log.Printf("[JWT] Ошибка при разборе токена: %v", err)
		return nil, fmt.Errorf("token validation failed: %w", apperrors.ErrUnauthorized)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("unexpected issuer %q: %w", claims.Issuer, apperrors.ErrUnauthorized)
	}
	if claims.UserID == 0 || claims.TenantID == 0 {
		return nil, fmt.Errorf("token has no user or tenant: %w", apperrors.ErrUnauthorized)
	}
	if _, ok := permissions[claims.Role]; !ok {
		return nil, fmt.Errorf("unknown role %q: %w", claims.Role, apperrors.ErrForbidden)
	}
	return claims, nil
}

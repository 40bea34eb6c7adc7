package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/bible-tournament-api/internal/pkg/errors"
)

const testSecret = "0123456789abcdef0123"

func TestJWTService_RoundTrip(t *testing.T) {
	// Arrange
	svc, err := NewJWTService(testSecret, "tenant-auth")
	require.NoError(t, err)

	// Act
	token, err := svc.GenerateToken(7, 3, RoleReviewer, time.Hour)
	require.NoError(t, err)
	claims, err := svc.ParseToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(3), claims.TenantID)
	assert.Equal(t, RoleReviewer, claims.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	svc, err := NewJWTService(testSecret, "tenant-auth")
	require.NoError(t, err)
	other, err := NewJWTService("another-secret-value-xx", "tenant-auth")
	require.NoError(t, err)
	foreignIssuer, err := NewJWTService(testSecret, "someone-else")
	require.NoError(t, err)

	expired, _ := svc.GenerateToken(7, 3, RoleAdmin, -time.Minute)
	wrongKey, _ := other.GenerateToken(7, 3, RoleAdmin, time.Hour)
	wrongIssuer, _ := foreignIssuer.GenerateToken(7, 3, RoleAdmin, time.Hour)
	noTenant, _ := svc.GenerateToken(7, 0, RoleAdmin, time.Hour)
	unknownRole, _ := svc.GenerateToken(7, 3, Role("owner"), time.Hour)

	tests := []struct {
		name   string
		token  string
		target error
	}{
		{"мусор", "not-a-token", apperrors.ErrUnauthorized},
		{"истекший", expired, apperrors.ErrExpiredToken},
		{"чужой ключ", wrongKey, apperrors.ErrUnauthorized},
		{"чужой издатель", wrongIssuer, apperrors.ErrUnauthorized},
		{"без тенанта", noTenant, apperrors.ErrUnauthorized},
		{"неизвестная роль", unknownRole, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ParseToken(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "Ожидалась ошибка %v, получена %v", tt.target, err)
		})
	}
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	svc, err := NewJWTService(testSecret, "")
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, TenantID: 1, Role: RoleAdmin})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ParseToken(raw)

	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("short", "")
	assert.Error(t, err)
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleAdmin, CapManageTournaments))
	assert.True(t, HasPermission(RoleReviewer, CapApproveBonus))
	assert.True(t, HasPermission(RoleParticipant, CapTakeQuiz))
	assert.False(t, HasPermission(RoleParticipant, CapReviewQuestions), "Участник не проверяет вопросы")
	assert.False(t, HasPermission(RoleEditor, CapApproveBonus))
	assert.False(t, HasPermission(Role("owner"), CapTakeQuiz))
}

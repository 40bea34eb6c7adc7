package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

func TestResendRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		attempt int
		want    time.Duration
		retry   bool
	}{
		{"rate limit с Retry-After", &resend.RateLimitError{RetryAfter: "3"}, 0, 3 * time.Second, true},
		{"rate limit с большим Retry-After", &resend.RateLimitError{RetryAfter: "120"}, 0, 30 * time.Second, true},
		{"rate limit без Retry-After", &resend.RateLimitError{}, 1, 2 * time.Second, true},
		{"таймаут", errors.New("request timeout"), 1, time.Second, true},
		{"постоянная ошибка", errors.New("invalid from address"), 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resendRetryDelay(tt.err, tt.attempt)
			assert.Equal(t, tt.retry, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReviewEmail(t *testing.T) {
	tournamentID := uint(12)
	req := &entity.BonusQuestionRequest{
		ID:                   uuid.MustParse("6f1c7f0e-6a7b-4f63-9d4e-2f6f0d1b7a11"),
		RequestedBy:          5,
		TournamentID:         &tournamentID,
		GeneratedQuestionIDs: entity.UintArray{31, 32, 33},
	}

	email := reviewEmail("quiz@example.com", []string{"reviewer@example.com"}, req)

	assert.Equal(t, "3 bonus question(s) await review", email.Subject)
	assert.Equal(t, []string{"reviewer@example.com"}, email.To)
	assert.Contains(t, email.Text, "tournament #12")
	assert.Contains(t, email.Text, req.ID.String())
}

func TestNewResendReviewNotifier_Validation(t *testing.T) {
	_, err := NewResendReviewNotifier("", "quiz@example.com", []string{"r@example.com"})
	assert.Error(t, err)
	_, err = NewResendReviewNotifier("re_key", "", []string{"r@example.com"})
	assert.Error(t, err)
	_, err = NewResendReviewNotifier("re_key", "quiz@example.com", nil)
	assert.Error(t, err)

	n, err := NewResendReviewNotifier("re_key", "quiz@example.com", []string{"r@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestNoopReviewNotifier(t *testing.T) {
	err := (&NoopReviewNotifier{}).NotifyAwaitingApproval(context.Background(), &entity.BonusQuestionRequest{ID: uuid.New()})
	assert.NoError(t, err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
)

// NoopReviewNotifier используется, когда почтовые уведомления выключены
type NoopReviewNotifier struct{}

func (n *NoopReviewNotifier) NotifyAwaitingApproval(ctx context.Context, request *entity.BonusQuestionRequest) error {
	log.Printf("[ReviewNotifier] noop: request %s awaits approval", request.ID)
	return nil
}

// ResendReviewNotifier отправляет модераторам письмо через Resend REST API
type ResendReviewNotifier struct {
	from      string
	reviewers []string
	client    *resend.Client
}

// NewResendReviewNotifier создает уведомитель модераторов
func NewResendReviewNotifier(apiKey, from string, reviewers []string) (*ResendReviewNotifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if len(reviewers) == 0 {
		return nil, fmt.Errorf("at least one reviewer email is required")
	}
	return &ResendReviewNotifier{
		from:      from,
		reviewers: reviewers,
		client:    resend.NewClient(apiKey),
	}, nil
}

// NotifyAwaitingApproval сообщает, что сгенерированные вопросы запроса ждут проверки.
// Ключ идемпотентности привязан к запросу, поэтому повтор после рестарта не дублирует письмо.
func (n *ResendReviewNotifier) NotifyAwaitingApproval(ctx context.Context, request *entity.BonusQuestionRequest) error {
	params := reviewEmail(n.from, n.reviewers, request)
	options := &resend.SendEmailOptions{IdempotencyKey: "bonus-awaiting-approval-" + request.ID.String()}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := n.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func reviewEmail(from string, to []string, request *entity.BonusQuestionRequest) *resend.SendEmailRequest {
	n := len(request.GeneratedQuestionIDs)
	destination := "the question pool"
	if request.TournamentID != nil {
		destination = fmt.Sprintf("tournament #%d", *request.TournamentID)
	}
	return &resend.SendEmailRequest{
		From:    from,
		To:      to,
		Subject: fmt.Sprintf("%d bonus question(s) await review", n),
		Text: fmt.Sprintf("Bonus request %s from user #%d produced %d question(s) for %s. Please review them.",
			request.ID, request.RequestedBy, n, destination),
		Html: fmt.Sprintf("<p>Bonus request <strong>%s</strong> from user #%d produced <strong>%d</strong> question(s) for %s.</p><p>Please review them.</p>",
			request.ID, request.RequestedBy, n, destination),
	}
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}

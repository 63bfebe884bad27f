package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce-api/internal/models"
	"ecommerce-api/internal/provider"
	"ecommerce-api/internal/redisclient"
	"ecommerce-api/internal/util"

	"go.uber.org/zap"
)

// NotificationService delivers requested emails
type NotificationService struct {
	mailer  Mailer
	secrets SecretStore
	logger  *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(mailer Mailer, secrets SecretStore) *NotificationService {
	return &NotificationService{
		mailer:  mailer,
		secrets: secrets,
		logger:  util.GetLogger(),
	}
}

// SendEmail renders and delivers one EMAIL_REQUESTED event. A returned error
// means delivery failed and may be retried; an expired secret or an unknown
// template is dropped with a warning.
func (s *NotificationService) SendEmail(ctx context.Context, event *models.EmailRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "NotificationService.SendEmail")
	defer span.End()

	secret, err := s.secrets.GetSecret(ctx, event.SecretRef)
	if errors.Is(err, redisclient.ErrSecretGone) {
		util.EmailsSentTotal.WithLabelValues("expired").Inc()
		s.logger.Warn("Email secret expired before delivery",
			zap.String("event_id", event.EventID),
			zap.String("template", event.Template))
		return nil
	}
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to read email secret %s: %w", event.EventID, err))
	}

	subject, html, err := renderEmail(event.Template, secret)
	if err != nil {
		util.EmailsSentTotal.WithLabelValues("dropped").Inc()
		s.logger.Warn("Email not rendered",
			zap.String("event_id", event.EventID),
			zap.String("template", event.Template),
			zap.Error(err))
		return nil
	}

	if err := s.mailer.Send(ctx, event.To, subject, html); err != nil {
		util.EmailsSentTotal.WithLabelValues("failed").Inc()
		return util.RecordError(span, fmt.Errorf("failed to send email %s: %w", event.EventID, err))
	}

	if err := s.secrets.DeleteSecret(ctx, event.SecretRef); err != nil {
		s.logger.Error("Failed to drop email secret", zap.String("event_id", event.EventID), zap.Error(err))
	}

	util.EmailsSentTotal.WithLabelValues("sent").Inc()
	s.logger.Info("Email sent",
		zap.String("event_id", event.EventID),
		zap.String("template", event.Template))
	return nil
}

func renderEmail(template, secret string) (string, string, error) {
	switch template {
	case models.EmailTemplateVerification:
		html, err := provider.VerificationEmail(secret, int(otpTTL/time.Minute))
		return "Verify your email", html, err
	case models.EmailTemplatePasswordReset:
		html, err := provider.ResetPasswordEmail(secret, int(resetTokenTTL/time.Minute))
		return "Password Reset Request", html, err
	}
	return "", "", fmt.Errorf("unknown email template %q", template)
}

// LogOrderPaid records paid orders seen on the event stream
func (s *NotificationService) LogOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	s.logger.Info("Order paid",
		zap.String("order_id", event.OrderID.String()),
		zap.String("payment_intent_id", event.PaymentIntentID))
	return nil
}

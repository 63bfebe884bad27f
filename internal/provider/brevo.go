package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// BrevoMailer sends transactional email through the Brevo API.
type BrevoMailer struct {
	apiKey      string
	senderEmail string
	senderName  string
	client      *brevo.APIClient
}

// NewBrevoMailer creates a mailer that sends from senderEmail, which must be
// verified in the Brevo account. An empty basePath keeps the SDK default.
func NewBrevoMailer(apiKey, senderEmail, senderName string, basePath ...string) *BrevoMailer {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	if len(basePath) > 0 && basePath[0] != "" {
		cfg.BasePath = basePath[0]
	}

	return &BrevoMailer{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		client:      brevo.NewAPIClient(cfg),
	}
}

// Send delivers one HTML email
func (m *BrevoMailer) Send(ctx context.Context, to, subject, html string) error {
	if m.apiKey == "" {
		return errors.New("BREVO_API not set")
	}

	_, resp, err := m.client.TransactionalEmailsApi.SendTransacEmail(ctx, brevo.SendSmtpEmail{
		Sender:      &brevo.SendSmtpEmailSender{Name: m.senderName, Email: m.senderEmail},
		To:          []brevo.SendSmtpEmailTo{{Email: to}},
		Subject:     subject,
		HtmlContent: html,
	})
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("Brevo API error (%d): %v", resp.StatusCode, err)
	}
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"fmt"

	"github.com/pvergaraf/tenis-booking-bot/logger"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// SendGridMailer sends reply email through SendGrid.
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

func NewSendGridMailer(apiKey, fromName, fromAddr string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

// Send delivers one email and returns SendGrid's message id. An empty
// html falls back to the plain text content.
func (m *SendGridMailer) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	from := mail.NewEmail(m.fromName, m.fromAddr)
	recipient := mail.NewEmail("", to)
	if html == "" {
		html = text
	}

	message := mail.NewSingleEmail(from, subject, recipient, text, html)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		logger.Logger.Error("failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return "", fmt.Errorf("failed to send email: %v", err)
	}

	if response.StatusCode >= 300 {
		logger.Logger.Error("SendGrid returned an error response",
			zap.String("to", to),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return "", fmt.Errorf("SendGrid returned status %d", response.StatusCode)
	}

	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}

	logger.Logger.Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("message_id", messageID))

	return messageID, nil
}

package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/models"
	"github.com/pvergaraf/tenis-booking-bot/services"

	"github.com/gin-gonic/gin"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"
)

// EmailCreator is the store slice the intake boundary needs.
type EmailCreator interface {
	Create(ctx context.Context, email *models.EmailMessage) error
}

// WebhookHandler accepts inbound email from the mail gateway, stores
// it pending and hands it off to the intake pipeline.
type WebhookHandler struct {
	emails EmailCreator
	intake *services.IntakeService
}

func NewWebhookHandler(emails EmailCreator, intake *services.IntakeService) *WebhookHandler {
	return &WebhookHandler{
		emails: emails,
		intake: intake,
	}
}

var angleAddrRe = regexp.MustCompile(`<(.+)>`)

// parseSenderField splits "Name <addr@example.com>" into its parts; a
// bare address yields an empty name.
func parseSenderField(sender string) (email, name string) {
	sender = strings.TrimSpace(sender)
	if match := angleAddrRe.FindStringSubmatch(sender); match != nil {
		email = strings.TrimSpace(match[1])
		name = strings.TrimSpace(strings.SplitN(sender, "<", 2)[0])
		return email, name
	}
	return sender, ""
}

// HandleMailgunInbound receives Mailgun's form-encoded route post.
func (h *WebhookHandler) HandleMailgunInbound(c *gin.Context) {
	logFields := []zap.Field{
		zap.String("handler", "HandleMailgunInbound"),
		zap.String("path", c.Request.URL.Path),
	}

	senderField := c.PostForm("sender")
	if senderField == "" {
		senderField = c.PostForm("from")
	}
	fromEmail, fromName := parseSenderField(senderField)

	text := c.PostForm("body-plain")
	html := c.PostForm("body-html")
	body := text
	if body == "" {
		body = html
	}

	if fromEmail == "" || body == "" {
		logger.Logger.Warn("webhook post missing sender or body", logFields...)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required email data"})
		return
	}

	email := &models.EmailMessage{
		FromEmail: fromEmail,
		FromName:  fromName,
		Subject:   c.PostForm("subject"),
		Body:      body,
		HTMLBody:  html,
		Status:    models.EmailStatusPending,
	}

	if err := h.emails.Create(c.Request.Context(), email); err != nil {
		logger.Logger.Error("failed to store inbound email",
			append(logFields, zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store email"})
		return
	}

	logger.Logger.Info("inbound email stored",
		append(logFields,
			zap.Uint("email_id", email.ID),
			zap.String("from", fromEmail))...)

	h.triggerIntake(email.ID)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"email_id": email.ID,
		"message":  "Email received and stored",
	})
}

// HandleRawMime receives a full RFC 822 message and parses it with
// enmime, for gateways configured to forward the stored message
// instead of parsed fields.
func (h *WebhookHandler) HandleRawMime(c *gin.Context) {
	logFields := []zap.Field{
		zap.String("handler", "HandleRawMime"),
		zap.String("path", c.Request.URL.Path),
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Logger.Error("failed to read request body",
			append(logFields, zap.Error(err))...)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		logger.Logger.Error("failed to parse MIME message",
			append(logFields, zap.Error(err))...)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse MIME message"})
		return
	}

	fromEmail, fromName := parseSenderField(env.GetHeader("From"))
	body := env.Text
	if body == "" {
		body = env.HTML
	}

	if fromEmail == "" || body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required email data"})
		return
	}

	email := &models.EmailMessage{
		FromEmail: fromEmail,
		FromName:  fromName,
		Subject:   env.GetHeader("Subject"),
		Body:      body,
		HTMLBody:  env.HTML,
		Status:    models.EmailStatusPending,
	}

	if err := h.emails.Create(c.Request.Context(), email); err != nil {
		logger.Logger.Error("failed to store inbound email",
			append(logFields, zap.Error(err))...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store email"})
		return
	}

	logger.Logger.Info("inbound MIME email stored",
		append(logFields,
			zap.Uint("email_id", email.ID),
			zap.String("from", fromEmail))...)

	h.triggerIntake(email.ID)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"email_id": email.ID,
		"message":  "Email received and stored",
	})
}

// triggerIntake hands the stored message off to the pipeline without
// blocking the webhook response. Losing this signal is non-fatal: the
// periodic trigger drains anything still pending.
func (h *WebhookHandler) triggerIntake(emailID uint) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := h.intake.ProcessPending(ctx, 0); err != nil {
			logger.Logger.Error("post-intake processing failed",
				zap.Uint("email_id", emailID),
				zap.Error(err))
		}
	}()
}

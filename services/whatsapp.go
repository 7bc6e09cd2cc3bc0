package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/logger"

	"go.uber.org/zap"
)

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	defaultSendTimeout   = 30 * time.Second
)

// TwilioService sends WhatsApp messages through the Twilio Messages
// API, either free-text or from an approved content template.
type TwilioService struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewTwilioService(accountSID, authToken, from string) *TwilioService {
	service := &TwilioService{
		baseURL:    defaultTwilioBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client: &http.Client{
			Timeout: defaultSendTimeout,
		},
	}

	logger.Logger.Info("Twilio service initialised",
		zap.Bool("has_account_sid", accountSID != ""),
		zap.Bool("has_auth_token", authToken != ""),
		zap.String("from", from),
	)

	return service
}

// SendText sends a free-text WhatsApp message.
func (s *TwilioService) SendText(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("From", whatsappAddr(s.from))
	form.Set("To", whatsappAddr(to))
	form.Set("Body", body)
	return s.send(ctx, form)
}

// SendTemplate sends a WhatsApp message from a content template with
// named placeholder values.
func (s *TwilioService) SendTemplate(ctx context.Context, to, templateSID string, variables map[string]string) (string, error) {
	vars, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template variables: %v", err)
	}

	form := url.Values{}
	form.Set("From", whatsappAddr(s.from))
	form.Set("To", whatsappAddr(to))
	form.Set("ContentSid", templateSID)
	form.Set("ContentVariables", string(vars))
	return s.send(ctx, form)
}

type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Message      string `json:"message"`
}

func (s *TwilioService) send(ctx context.Context, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Logger.Error("WhatsApp send request failed", zap.Error(err))
		return "", fmt.Errorf("failed to make HTTP request: %v", err)
	}
	defer resp.Body.Close()

	var twResp twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&twResp); err != nil {
		return "", fmt.Errorf("failed to decode Twilio response: %v", err)
	}

	if resp.StatusCode >= 300 {
		msg := twResp.Message
		if msg == "" {
			msg = twResp.ErrorMessage
		}
		logger.Logger.Error("Twilio returned an error response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("error", msg),
		)
		return "", fmt.Errorf("Twilio returned status %d: %s", resp.StatusCode, msg)
	}

	logger.Logger.Info("WhatsApp message sent",
		zap.String("to", form.Get("To")),
		zap.String("sid", twResp.SID),
		zap.String("status", twResp.Status),
	)

	return twResp.SID, nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

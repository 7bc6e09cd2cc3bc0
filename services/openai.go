package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/logger"

	"go.uber.org/zap"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultParseTimeout   = 60 * time.Second
)

// ReservationCandidate is one extracted reservation, not yet persisted.
type ReservationCandidate struct {
	Date        string `json:"date"`
	InitialTime string `json:"initial_time"`
	EndTime     string `json:"end_time"`
	SenderEmail string `json:"-"`
	SenderName  string `json:"-"`
}

// ParseResult carries the candidates plus the raw model output kept
// for audit on each stored reservation.
type ParseResult struct {
	Candidates  []ReservationCandidate
	RawResponse string
}

// OpenAIService extracts reservations from email text through the
// chat completions API in JSON mode.
type OpenAIService struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func NewOpenAIService(apiKey, model string) *OpenAIService {
	service := &OpenAIService{
		endpoint: defaultOpenAIEndpoint,
		apiKey:   apiKey,
		model:    model,
		client: &http.Client{
			Timeout: defaultParseTimeout,
		},
	}

	logger.Logger.Info("OpenAI service initialised",
		zap.Bool("has_api_key", apiKey != ""),
		zap.String("model", model),
		zap.Duration("timeout", defaultParseTimeout),
	)

	return service
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type extractionPayload struct {
	Reservations []ReservationCandidate `json:"reservations"`
}

// ParseReservations extracts every reservation mentioned in body,
// resolving relative dates against the supplied anchor. Zero
// candidates is a valid result, not an error.
func (s *OpenAIService) ParseReservations(ctx context.Context, body, senderEmail, senderName string, now time.Time) (*ParseResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not set")
	}

	request := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "Eres un asistente especializado en extraer información estructurada de emails. Siempre respondes con JSON válido.",
			},
			{
				Role:    "user",
				Content: buildExtractionPrompt(body, now),
			},
		},
		Temperature: 0.3,
	}
	request.ResponseFormat.Type = "json_object"

	payloadBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Logger.Error("extraction request failed", zap.Error(err))
		return nil, fmt.Errorf("failed to make HTTP request: %v", err)
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if chatResp.Error != nil {
			msg = chatResp.Error.Message
		}
		logger.Logger.Error("OpenAI returned non-200 status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("error", msg),
		)
		return nil, fmt.Errorf("OpenAI returned status %d: %s", resp.StatusCode, msg)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("no response content from OpenAI")
	}
	content := chatResp.Choices[0].Message.Content

	var extracted extractionPayload
	if err := json.Unmarshal([]byte(content), &extracted); err != nil {
		logger.Logger.Error("extraction output is not valid JSON",
			zap.Error(err),
			zap.String("content", content),
		)
		return nil, fmt.Errorf("invalid extraction output: %v", err)
	}

	candidates, err := normalizeCandidates(extracted.Reservations, senderEmail, senderName)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("extraction completed",
		zap.String("sender", senderEmail),
		zap.Int("candidates", len(candidates)),
	)

	return &ParseResult{
		Candidates:  candidates,
		RawResponse: content,
	}, nil
}

// buildExtractionPrompt renders the Spanish extraction prompt anchored
// on the given date. Policy encoded here: anchor year unless stated,
// unqualified weekdays mean the next occurrence after the anchor,
// start-only reservations last one hour, and a dateless reservation
// falls on the anchor date plus seven days.
func buildExtractionPrompt(body string, now time.Time) string {
	todayStr := FormatLongDate(now)
	todayISO := now.Format("2006-01-02")
	nextWeekISO := now.AddDate(0, 0, 7).Format("2006-01-02")

	return fmt.Sprintf(`Eres un asistente que extrae información de reservas de canchas de tenis de emails.

HOY ES: %s (%s)

Analiza el siguiente email y extrae todas las reservas de canchas de tenis mencionadas. Para cada reserva, identifica:
- Fecha de la reserva (formato: YYYY-MM-DD)
- Hora de inicio (formato: HH:MM en 24 horas)
- Hora de fin (formato: HH:MM en 24 horas)

El email puede contener múltiples reservas. Si no hay reservas claras, devuelve un array vacío.

IMPORTANTE:
- Usa SIEMPRE el año actual (%d) a menos que se especifique otro año
- "Próximo miércoles" = el próximo día miércoles después de hoy
- "Mañana" = %s + 1 día
- Si la fecha no está especificada, asume el mismo día de la próxima semana (%s)
- Si solo hay hora de inicio, asume que la reserva dura 1 hora
- Si hay ambigüedad, usa el contexto del email para inferir
- Calcula correctamente fechas relativas basándote en la fecha de HOY

Responde SOLO con un JSON válido en este formato:
{
  "reservations": [
    {
      "date": "2025-11-20",
      "initial_time": "18:00",
      "end_time": "19:00"
    }
  ]
}

Email a analizar:
%s`, todayStr, todayISO, now.Year(), todayISO, nextWeekISO, body)
}

// normalizeCandidates validates each extracted entry and stamps the
// sender on it. The extractor never emits a partial record: a missing
// date or start time rejects the whole result.
func normalizeCandidates(raw []ReservationCandidate, senderEmail, senderName string) ([]ReservationCandidate, error) {
	candidates := make([]ReservationCandidate, 0, len(raw))
	for i, r := range raw {
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return nil, fmt.Errorf("reservation %d has invalid date %q", i+1, r.Date)
		}
		if r.InitialTime == "" {
			return nil, fmt.Errorf("reservation %d is missing a start time", i+1)
		}

		initial := FormatClock(r.InitialTime)
		if _, err := time.Parse("15:04", initial); err != nil {
			return nil, fmt.Errorf("reservation %d has invalid start time %q", i+1, r.InitialTime)
		}

		end := r.EndTime
		if end == "" {
			// One-hour default when the model returns only a start.
			start, _ := time.Parse("15:04", initial)
			end = start.Add(time.Hour).Format("15:04")
		}
		end = FormatClock(end)
		if _, err := time.Parse("15:04", end); err != nil {
			return nil, fmt.Errorf("reservation %d has invalid end time %q", i+1, r.EndTime)
		}

		candidates = append(candidates, ReservationCandidate{
			Date:        r.Date,
			InitialTime: initial,
			EndTime:     end,
			SenderEmail: senderEmail,
			SenderName:  senderName,
		})
	}
	return candidates, nil
}

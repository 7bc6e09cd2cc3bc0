package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// ServerConfig holds every environment-driven setting of the service.
type ServerConfig struct {
	Port        string
	GinMode     string
	LogLevel    zapcore.Level
	Environment string
	ServiceName string

	// OpenAI extraction
	OpenAIAPIKey string
	OpenAIModel  string

	// SendGrid outbound mail
	SendGridAPIKey string
	EmailFromName  string
	EmailFromAddr  string

	// Twilio WhatsApp
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	CourtNumber         string
	GroupNumber         string
	TemplateBooking     string
	TemplateConfirm     string
	TemplateReminder    string

	// Admin and trigger auth
	AdminEmails []string
	CronSecret  string

	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// InitConfig loads .env, configures gin and the log level, and
// validates the provider credentials. Missing credentials are a
// startup failure, not a per-request one.
func InitConfig() (*ServerConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found")
	}

	logLevel := initLogLevel()
	ginMode := initGinMode()

	config := &ServerConfig{
		Port:        getEnv("SERVER_PORT", "8080"),
		GinMode:     ginMode,
		LogLevel:    logLevel,
		Environment: getEnv("ENVIRONMENT", "development"),
		ServiceName: getEnv("SERVICE_NAME", "tenis-booking-bot"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Bot de Reservas"),
		EmailFromAddr:  getEnv("RESERVATION_EMAIL", ""),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		CourtNumber:        getEnv("TENNIS_COURT_NUMBER", ""),
		GroupNumber:        getEnv("WHATSAPP_GROUP_NUMBER", ""),
		TemplateBooking:    getEnv("TWILIO_TEMPLATE_BOOKING", ""),
		TemplateConfirm:    getEnv("TWILIO_TEMPLATE_CONFIRMATION", ""),
		TemplateReminder:   getEnv("TWILIO_TEMPLATE_REMINDER", ""),

		AdminEmails: splitEmails(getEnv("RESERVATION_ADMIN_EMAILS", "")),
		CronSecret:  getEnv("CRON_SECRET", ""),

		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}

	return config, config.Validate()
}

// SetupServer builds the http.Server for the gin engine.
func SetupServer(r *gin.Engine, config *ServerConfig) *http.Server {
	displayServerConfig(r, config)

	return &http.Server{
		Addr:              ":" + config.Port,
		Handler:           r,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func initLogLevel() zapcore.Level {
	logLevelStr := getEnv("LOG_LEVEL", "info")
	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(logLevelStr)); err != nil {
		fmt.Printf("Invalid LOG_LEVEL '%s', defaulting to 'info'\n", logLevelStr)
		logLevel = zapcore.InfoLevel
	}
	logger.LogLevel.SetLevel(logLevel)
	return logLevel
}

func initGinMode() string {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = "release"
	}
	gin.SetMode(ginMode)
	return ginMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitEmails(raw string) []string {
	var emails []string
	for _, part := range strings.Split(raw, ",") {
		if addr := strings.ToLower(strings.TrimSpace(part)); addr != "" {
			emails = append(emails, addr)
		}
	}
	return emails
}

func (c *ServerConfig) Validate() error {
	required := map[string]string{
		"OpenAIAPIKey":       c.OpenAIAPIKey,
		"SendGridAPIKey":     c.SendGridAPIKey,
		"EmailFromAddr":      c.EmailFromAddr,
		"TwilioAccountSID":   c.TwilioAccountSID,
		"TwilioAuthToken":    c.TwilioAuthToken,
		"TwilioWhatsAppFrom": c.TwilioWhatsAppFrom,
		"CourtNumber":        c.CourtNumber,
		"GroupNumber":        c.GroupNumber,
	}

	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	return nil
}

func displayServerConfig(r *gin.Engine, config *ServerConfig) {
	var routeInfo strings.Builder
	routeInfo.WriteString("Registered Endpoints:\n")
	for _, route := range r.Routes() {
		routeInfo.WriteString(fmt.Sprintf("- %s: %s -> %s\n",
			route.Method,
			route.Path,
			route.Handler))
	}

	fmt.Printf("\n"+
		"=================================\n"+
		"Server Configuration:\n"+
		"- Port: %s\n"+
		"- Mode: %s\n"+
		"- Log Level: %s\n"+
		"- Environment: %s\n"+
		"- Service: %s\n"+
		"=================================\n"+
		"%s"+
		"=================================\n",
		config.Port,
		config.GinMode,
		logger.LogLevel.String(),
		config.Environment,
		config.ServiceName,
		routeInfo.String())
}

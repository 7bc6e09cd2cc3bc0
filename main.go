package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pvergaraf/tenis-booking-bot/config"
	"github.com/pvergaraf/tenis-booking-bot/handlers"
	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/middleware"
	"github.com/pvergaraf/tenis-booking-bot/migrations"
	"github.com/pvergaraf/tenis-booking-bot/services"
	"github.com/pvergaraf/tenis-booking-bot/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.InitConfig()
	if err != nil {
		logger.Logger.Fatal("failed to initialise configuration", zap.Error(err))
	}

	if err := config.ConnectDatabase(); err != nil {
		logger.Logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer config.CloseDatabase()

	db, err := config.GetDB()
	if err != nil {
		logger.Logger.Fatal("database is not available", zap.Error(err))
	}

	if err := migrations.NewMigrator(db).RunMigrations(); err != nil {
		logger.Logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Stores and provider clients are process-wide singletons built
	// once at startup and injected into the pipelines.
	emailStore := store.NewEmailStore(db)
	reservationStore := store.NewReservationStore(db)

	parser := services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	mailer := services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFromAddr)
	chat := services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)

	admin := services.NewAdminService(reservationStore, mailer)
	intake := services.NewIntakeService(emailStore, reservationStore, parser, mailer, admin, cfg.AdminEmails)
	dispatch := services.NewDispatchService(reservationStore, chat, services.DispatchConfig{
		CourtNumber:      cfg.CourtNumber,
		GroupNumber:      cfg.GroupNumber,
		TemplateBooking:  cfg.TemplateBooking,
		TemplateConfirm:  cfg.TemplateConfirm,
		TemplateReminder: cfg.TemplateReminder,
	})

	webhookHandler := handlers.NewWebhookHandler(emailStore, intake)
	cronHandler := handlers.NewCronHandler(intake, dispatch, cfg.EmailFromAddr)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", handleHealthCheck)

	webhook := r.Group("/webhook")
	webhook.POST("/mailgun", webhookHandler.HandleMailgunInbound)
	webhook.POST("/mime", webhookHandler.HandleRawMime)

	cron := r.Group("/cron", middleware.CronAuth(cfg.CronSecret))
	cron.POST("/process-emails", cronHandler.HandleProcessEmails)
	cron.POST("/send-bookings", cronHandler.HandleSendBookings)
	cron.POST("/send-reminder", cronHandler.HandleSendReminder)

	srv := config.SetupServer(r, cfg)

	handleGracefulShutdown(srv, cfg.ShutdownTimeout)
}

func handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleGracefulShutdown(srv *http.Server, timeout time.Duration) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Logger.Info("server stopped")
}

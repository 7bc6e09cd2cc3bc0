package handlers

import (
	"net/http"

	"github.com/pvergaraf/tenis-booking-bot/logger"
	"github.com/pvergaraf/tenis-booking-bot/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Max inbound messages handled per periodic trigger firing. Keeps one
// invocation's cost bounded; leftovers wait for the next firing.
const cronBatchLimit = 10

// CronHandler serves the periodic trigger endpoints.
type CronHandler struct {
	intake           *services.IntakeService
	dispatch         *services.DispatchService
	reservationEmail string
}

func NewCronHandler(intake *services.IntakeService, dispatch *services.DispatchService, reservationEmail string) *CronHandler {
	return &CronHandler{
		intake:           intake,
		dispatch:         dispatch,
		reservationEmail: reservationEmail,
	}
}

// HandleProcessEmails drains a bounded batch of pending inbound mail.
func (h *CronHandler) HandleProcessEmails(c *gin.Context) {
	batch, err := h.intake.ProcessPending(c.Request.Context(), cronBatchLimit)
	if err != nil {
		logger.Logger.Error("intake run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch emails"})
		return
	}

	if batch.Processed == 0 {
		c.JSON(http.StatusOK, gin.H{
			"message":   "No pending emails to process",
			"processed": 0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Email processing completed",
		"processed": batch.Processed,
		"results":   batch.Results,
	})
}

// HandleSendBookings first drains pending inbound mail so a backlog
// of unprocessed emails does not miss the dispatch window, then
// relays every pending reservation.
func (h *CronHandler) HandleSendBookings(c *gin.Context) {
	if _, err := h.intake.ProcessPending(c.Request.Context(), cronBatchLimit); err != nil {
		// Dispatch still runs on whatever was extracted earlier.
		logger.Logger.Error("pre-dispatch intake drain failed", zap.Error(err))
	}

	run, err := h.dispatch.SendPending(c.Request.Context())
	if err != nil {
		logger.Logger.Error("dispatch run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reservations"})
		return
	}

	if run.Total == 0 {
		c.JSON(http.StatusOK, gin.H{
			"message": "No pending reservations to send",
			"sent":    0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Booking processing completed",
		"total":   run.Total,
		"results": run.Results,
	})
}

// HandleSendReminder posts the weekly reminder to the group.
func (h *CronHandler) HandleSendReminder(c *gin.Context) {
	sid, err := h.dispatch.SendReminder(c.Request.Context(), h.reservationEmail)
	if err != nil {
		logger.Logger.Error("reminder send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to send reminder",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Reminder sent successfully",
		"provider_sid": sid,
	})
}

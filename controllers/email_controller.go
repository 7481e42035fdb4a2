package controllers

import (
	"net/http"

	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EmailController exposes queue statistics and a manual drain for
// operators.
type EmailController struct {
	Queue     *services.EmailQueueService
	BatchSize int
	Logger    *zap.Logger
}

// Stats handles GET /emails/stats.
func (ec *EmailController) Stats(c *gin.Context) {
	stats, err := ec.Queue.Stats(c.Request.Context())
	if err != nil {
		ec.Logger.Error("Failed to read email queue stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to read queue stats."}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// ProcessBatch handles POST /emails/process, running one batch outside
// the scheduled loop.
func (ec *EmailController) ProcessBatch(c *gin.Context) {
	result, err := ec.Queue.ProcessPending(c.Request.Context(), ec.BatchSize)
	if err != nil {
		ec.Logger.Error("Manual email batch run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to process email batch."}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

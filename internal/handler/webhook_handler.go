package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtoys/internal/model"
)

// BatchProcessor runs the detection pipeline over one webhook delivery.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batch model.NotificationBatch)
	Received() []model.ReceivedNotification
}

type WebhookHandler struct {
	pipeline BatchProcessor
	logger   *zap.Logger
}

func NewWebhookHandler(pipeline BatchProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline, logger: logger}
}

// Handle serves POST /webhook. Subscription validation requests are answered
// with the token in plain text; change notifications always get 202, since
// Graph treats any non-2xx as a delivery failure and backs off the
// subscription.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if token := c.Query("validationToken"); token != "" {
		h.logger.Info("Subscription validation request")
		c.String(http.StatusOK, token)
		return
	}

	var batch model.NotificationBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.logger.Warn("Malformed webhook body", zap.Error(err))
		c.Status(http.StatusAccepted)
		return
	}

	h.logger.Info("Change notification received", zap.Int("items", len(batch.Value)))
	h.pipeline.ProcessBatch(c.Request.Context(), batch)

	c.Status(http.StatusAccepted)
}

// ListNotifications serves GET /notifications, the in-memory delivery log.
func (h *WebhookHandler) ListNotifications(c *gin.Context) {
	received := h.pipeline.Received()
	c.JSON(http.StatusOK, gin.H{
		"total":         len(received),
		"notifications": received,
	})
}

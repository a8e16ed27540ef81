package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtoys/internal/model"
)

type fakeBatchProcessor struct {
	batches  []model.NotificationBatch
	received []model.ReceivedNotification
}

func (f *fakeBatchProcessor) ProcessBatch(_ context.Context, batch model.NotificationBatch) {
	f.batches = append(f.batches, batch)
}

func (f *fakeBatchProcessor) Received() []model.ReceivedNotification {
	return f.received
}

func webhookRouter(pipeline *fakeBatchProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(pipeline, zap.NewNop())
	r := gin.New()
	r.POST("/webhook", h.Handle)
	r.GET("/notifications", h.ListNotifications)
	return r
}

func TestWebhookValidationEchoesToken(t *testing.T) {
	pipeline := &fakeBatchProcessor{}
	r := webhookRouter(pipeline)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook?validationToken=abc%20123", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc 123", w.Body.String())
	assert.Empty(t, pipeline.batches, "validation must not reach the pipeline")
}

func TestWebhookNotificationAccepted(t *testing.T) {
	pipeline := &fakeBatchProcessor{}
	r := webhookRouter(pipeline)

	body := `{"value":[{"subscriptionId":"sub-1","clientState":"AIPowerToysSecret123","changeType":"created","resource":"Users/u/Messages/m1"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pipeline.batches, 1)
	require.Len(t, pipeline.batches[0].Value, 1)
	assert.Equal(t, "Users/u/Messages/m1", pipeline.batches[0].Value[0].Resource)
}

func TestWebhookMalformedBodyStillAccepted(t *testing.T) {
	pipeline := &fakeBatchProcessor{}
	r := webhookRouter(pipeline)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, pipeline.batches)
}

func TestListNotifications(t *testing.T) {
	pipeline := &fakeBatchProcessor{
		received: []model.ReceivedNotification{
			{
				Timestamp:    time.Now(),
				Notification: model.ChangeNotification{SubscriptionID: "sub-1", Resource: "Users/u/Messages/m1"},
			},
		},
	}
	r := webhookRouter(pipeline)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), "sub-1")
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtoys/internal/model"
	"mailtoys/internal/repository"
	"mailtoys/internal/service/graph"
	"mailtoys/internal/service/tokenstore"
)

// defaultSubscriptionResource watches the signed-in user's inbox.
const defaultSubscriptionResource = "me/mailFolders('inbox')/messages"

// MessageProcessor runs one Graph message through the detection pipeline.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, userEmail string, msg *graph.Message) (int, error)
}

// GraphHandler serves the endpoints that call out to Microsoft Graph:
// sending mail, managing subscriptions and the simulate loop.
type GraphHandler struct {
	graph       *graph.Client
	tokens      *tokenstore.Store
	subs        *repository.SubscriptionRepository
	pipeline    MessageProcessor
	clientState string
	webhookURL  string
	userEmail   string
	logger      *zap.Logger
}

func NewGraphHandler(
	gc *graph.Client,
	tokens *tokenstore.Store,
	subs *repository.SubscriptionRepository,
	pipeline MessageProcessor,
	clientState, webhookURL, userEmail string,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		graph:       gc,
		tokens:      tokens,
		subs:        subs,
		pipeline:    pipeline,
		clientState: clientState,
		webhookURL:  webhookURL,
		userEmail:   userEmail,
		logger:      logger,
	}
}

func (h *GraphHandler) token(c *gin.Context) (string, bool) {
	token := h.tokens.Get()
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no access token; paste one via POST /api/update-token"})
		return "", false
	}
	return token, true
}

// SendEmail serves POST /api/send-email.
func (h *GraphHandler) SendEmail(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}

	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and subject are required"})
		return
	}

	if err := h.graph.SendMail(c.Request.Context(), token, req.To, req.Subject, req.Body); err != nil {
		var se *graph.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusForbidden {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Graph rejected the send; the token is missing the Mail.Send permission",
			})
			return
		}
		h.logger.Error("Failed to send mail", zap.String("to", req.To), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send mail"})
		return
	}

	h.logger.Info("Mail sent", zap.String("to", req.To), zap.String("subject", req.Subject))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListSubscriptions serves GET /api/subscriptions. Graph is authoritative;
// the local cache is refreshed from what it returns.
func (h *GraphHandler) ListSubscriptions(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}

	subs, err := h.graph.ListSubscriptions(c.Request.Context(), token)
	if err != nil {
		h.logger.Error("Failed to list subscriptions, serving local cache", zap.Error(err))
		if h.subs != nil {
			if cached, cacheErr := h.subs.List(c.Request.Context()); cacheErr == nil {
				c.JSON(http.StatusOK, gin.H{"subscriptions": cached, "cached": true})
				return
			}
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list subscriptions"})
		return
	}

	for _, s := range subs {
		h.cacheSubscription(c.Request.Context(), &s)
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// CreateSubscription serves POST /api/subscriptions. Expiry is pinned to the
// Graph maximum for mail resources; an expired subscription is re-created,
// never renewed.
func (h *GraphHandler) CreateSubscription(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}

	var req struct {
		WebhookURL string `json:"webhook_url"`
		Resource   string `json:"resource"`
		ChangeType string `json:"change_type"`
	}
	// Body is optional; every field has a default.
	_ = c.ShouldBindJSON(&req)

	if req.WebhookURL == "" {
		req.WebhookURL = h.webhookURL
	}
	if req.WebhookURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook_url required (none configured)"})
		return
	}
	if req.Resource == "" {
		req.Resource = defaultSubscriptionResource
	}
	if req.ChangeType == "" {
		req.ChangeType = "created"
	}

	expiry := time.Now().Add(model.MaxSubscriptionLifetime)
	sub, err := h.graph.CreateSubscription(c.Request.Context(), token, graph.SubscriptionRequest{
		ChangeType:         req.ChangeType,
		NotificationURL:    req.WebhookURL,
		Resource:           req.Resource,
		ExpirationDateTime: expiry.UTC().Format(time.RFC3339),
		ClientState:        h.clientState,
	})
	if err != nil {
		h.logger.Error("Failed to create subscription",
			zap.String("resource", req.Resource),
			zap.String("notification_url", req.WebhookURL),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create subscription"})
		return
	}

	h.cacheSubscription(c.Request.Context(), sub)
	h.logger.Info("Subscription created",
		zap.String("subscription_id", sub.ID),
		zap.String("resource", sub.Resource),
		zap.String("expires", sub.ExpirationDateTime),
	)
	c.JSON(http.StatusOK, sub)
}

// DeleteSubscription serves DELETE /api/subscriptions/:id.
func (h *GraphHandler) DeleteSubscription(c *gin.Context) {
	token, ok := h.token(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.graph.DeleteSubscription(c.Request.Context(), token, id); err != nil {
		h.logger.Error("Failed to delete subscription", zap.String("subscription_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete subscription"})
		return
	}

	if h.subs != nil {
		if err := h.subs.Delete(c.Request.Context(), id); err != nil {
			h.logger.Warn("Failed to drop cached subscription", zap.String("subscription_id", id), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Simulate serves POST /api/simulate: pull the most recent messages and run
// them through the same path a webhook delivery takes. Useful when no tunnel
// is up to receive real notifications.
func (h *GraphHandler) Simulate(c *gin.Context) {
	var req struct {
		Count     int    `json:"count"`
		Token     string `json:"token"`
		UserEmail string `json:"user_email"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Count <= 0 {
		req.Count = 5
	}
	if req.Count > 50 {
		req.Count = 50
	}

	// A token in the body runs the simulation without touching the stored
	// one, so test runs don't hijack the live webhook flow.
	token := tokenstore.Clean(req.Token)
	if token == "" {
		var ok bool
		if token, ok = h.token(c); !ok {
			return
		}
	}
	userEmail := req.UserEmail
	if userEmail == "" {
		userEmail = h.userEmail
	}

	msgs, err := h.graph.ListRecentMessages(c.Request.Context(), token, req.Count)
	if err != nil {
		h.logger.Error("Failed to fetch messages for simulation", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch messages"})
		return
	}

	type result struct {
		MessageID  string `json:"message_id"`
		Subject    string `json:"subject"`
		Detections int    `json:"detections"`
		Error      string `json:"error,omitempty"`
	}

	results := make([]result, 0, len(msgs))
	processed, failed := 0, 0
	for i := range msgs {
		msg := &msgs[i]
		r := result{MessageID: msg.ID, Subject: msg.Subject}
		n, err := h.pipeline.ProcessMessage(c.Request.Context(), userEmail, msg)
		if err != nil {
			failed++
			r.Error = err.Error()
			h.logger.Error("Simulation failed for message", zap.String("message_id", msg.ID), zap.Error(err))
		} else {
			processed++
			r.Detections = n
		}
		results = append(results, r)
	}

	c.JSON(http.StatusOK, gin.H{
		"fetched":   len(msgs),
		"processed": processed,
		"errors":    failed,
		"results":   results,
	})
}

func (h *GraphHandler) cacheSubscription(ctx context.Context, s *graph.SubscriptionResponse) {
	if h.subs == nil {
		return
	}
	expiry, err := time.Parse(time.RFC3339, s.ExpirationDateTime)
	if err != nil {
		expiry = time.Now().Add(model.MaxSubscriptionLifetime)
	}
	err = h.subs.Upsert(ctx, &model.Subscription{
		ID:                 s.ID,
		Resource:           s.Resource,
		ChangeType:         s.ChangeType,
		NotificationURL:    s.NotificationURL,
		ExpirationDateTime: expiry,
	})
	if err != nil {
		h.logger.Warn("Failed to cache subscription", zap.String("subscription_id", s.ID), zap.Error(err))
	}
}

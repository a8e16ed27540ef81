package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtoys/internal/model"
	"mailtoys/internal/repository"
	"mailtoys/internal/sse"
)

type DashboardHandler struct {
	emails     *repository.EmailRepository
	detections *repository.DetectionRepository
	actions    *repository.ActionRepository
	hub        *sse.Hub
	logger     *zap.Logger
}

func NewDashboardHandler(
	emails *repository.EmailRepository,
	detections *repository.DetectionRepository,
	actions *repository.ActionRepository,
	hub *sse.Hub,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		emails:     emails,
		detections: detections,
		actions:    actions,
		hub:        hub,
		logger:     logger,
	}
}

// Stats serves GET /api/stats/:userEmail.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.detections.DashboardStats(c.Request.Context(), c.Param("userEmail"))
	if err != nil {
		h.logger.Error("Failed to fetch dashboard stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Pending serves GET /api/pending/:userEmail.
func (h *DashboardHandler) Pending(c *gin.Context) {
	pending, err := h.detections.ListPendingByUser(c.Request.Context(), c.Param("userEmail"))
	if err != nil {
		h.logger.Error("Failed to fetch pending detections", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch pending detections"})
		return
	}
	c.JSON(http.StatusOK, pending)
}

// RecentEmails serves GET /api/emails/:userEmail, newest first.
func (h *DashboardHandler) RecentEmails(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 20
	}

	emails, err := h.emails.ListRecent(c.Request.Context(), c.Param("userEmail"), limit)
	if err != nil {
		h.logger.Error("Failed to list emails", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch emails"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"emails": emails})
}

// EmailDetails serves GET /api/email/:emailId with detections and actions.
func (h *DashboardHandler) EmailDetails(c *gin.Context) {
	emailID, err := strconv.Atoi(c.Param("emailId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	ctx := c.Request.Context()
	email, err := h.emails.GetByID(ctx, emailID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}

	detections, err := h.detections.ListByEmail(ctx, emailID)
	if err != nil {
		h.logger.Error("Failed to fetch detections", zap.Int("email_id", emailID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch detections"})
		return
	}
	for i := range detections {
		actions, err := h.actions.ListByDetection(ctx, detections[i].ID)
		if err != nil {
			h.logger.Error("Failed to fetch actions", zap.Int("detection_id", detections[i].ID), zap.Error(err))
			continue
		}
		detections[i].Actions = actions
	}

	c.JSON(http.StatusOK, model.EmailWithDetections{Email: *email, Detections: detections})
}

// UpdateDetectionStatus serves PATCH /api/detection/:detectionId/status.
func (h *DashboardHandler) UpdateDetectionStatus(c *gin.Context) {
	detectionID, err := strconv.Atoi(c.Param("detectionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !model.ValidDetectionStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	if err := h.detections.UpdateStatus(c.Request.Context(), detectionID, req.Status); err != nil {
		h.logger.Error("Failed to update detection status",
			zap.Int("detection_id", detectionID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}

	detection, err := h.detections.GetByID(c.Request.Context(), detectionID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "detection": detection})
}

// DeleteDetection serves DELETE /api/detection/:detectionId.
func (h *DashboardHandler) DeleteDetection(c *gin.Context) {
	detectionID, err := strconv.Atoi(c.Param("detectionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}

	if err := h.detections.Delete(c.Request.Context(), detectionID); err != nil {
		h.logger.Error("Failed to delete detection", zap.Int("detection_id", detectionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete detection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Detection deleted successfully"})
}

// AddAction serves POST /api/action.
func (h *DashboardHandler) AddAction(c *gin.Context) {
	var req model.UserAction
	if err := c.ShouldBindJSON(&req); err != nil || req.DetectionID == 0 || req.ActionType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "detection_id and action_type are required"})
		return
	}

	action, err := h.actions.Insert(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to insert action", zap.Int("detection_id", req.DetectionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to insert action"})
		return
	}
	c.JSON(http.StatusOK, action)
}

// UpdateActionResult serves PATCH /api/action/:actionId/result, recording how
// an action attempt went.
func (h *DashboardHandler) UpdateActionResult(c *gin.Context) {
	actionID, err := strconv.Atoi(c.Param("actionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action id"})
		return
	}

	var req struct {
		Result       string  `json:"result"`
		ErrorMessage *string `json:"error_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	switch req.Result {
	case model.ResultPending, model.ResultSuccess, model.ResultFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result"})
		return
	}

	if err := h.actions.UpdateResult(c.Request.Context(), actionID, req.Result, req.ErrorMessage); err != nil {
		h.logger.Error("Failed to update action result", zap.Int("action_id", actionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update action result"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ClearDB serves POST /api/clear-db, a maintenance reset.
func (h *DashboardHandler) ClearDB(c *gin.Context) {
	if err := h.emails.ClearAll(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear database", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear database"})
		return
	}
	h.logger.Warn("All email, detection and action data cleared")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "All database data cleared successfully"})
}

// TestNotification serves POST /api/test-notification: broadcasts a synthetic
// detection event so tray and dashboard wiring can be checked end to end.
func (h *DashboardHandler) TestNotification(c *gin.Context) {
	var req struct {
		ToyType string `json:"toy_type"`
		Subject string `json:"subject"`
		From    string `json:"from"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.ToyType == "" {
		req.ToyType = model.ToyFollowUp
	}
	if !model.ValidToyType(req.ToyType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid toy_type"})
		return
	}
	if req.Subject == "" {
		req.Subject = "Test Email: Please send Q4 report by Friday"
	}
	if req.From == "" {
		req.From = "test@example.com"
	}

	h.hub.Broadcast(sse.Event{
		Type: sse.EventNewEmail,
		Data: gin.H{
			"email_id":       999,
			"subject":        req.Subject,
			"from":           req.From,
			"toy_type":       req.ToyType,
			"detection_id":   999,
			"confidence":     0.95,
			"detection_data": gin.H{"test": true},
		},
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Test notification sent to connected clients"})
}

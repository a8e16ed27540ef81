package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtoys/internal/model"
	"mailtoys/internal/repository"
	"mailtoys/internal/sse"
)

type TaskHandler struct {
	tasks  *repository.TaskRepository
	hub    *sse.Hub
	logger *zap.Logger
}

func NewTaskHandler(tasks *repository.TaskRepository, hub *sse.Hub, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, hub: hub, logger: logger}
}

// List serves GET /api/tasks. Filters arrive as comma-separated query values.
func (h *TaskHandler) List(c *gin.Context) {
	userEmail := c.Query("user_email")
	if userEmail == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_email required"})
		return
	}

	filters := model.TaskFilters{
		Status:         splitList(c.Query("status")),
		ToyType:        splitList(c.Query("toy_type")),
		Priority:       splitList(c.Query("priority")),
		Source:         splitList(c.Query("source")),
		Timeframe:      c.Query("timeframe"),
		Search:         c.Query("search"),
		IncludeDeleted: c.Query("include_deleted") == "true",
	}

	tasks, err := h.tasks.List(c.Request.Context(), userEmail, filters)
	if err != nil {
		h.logger.Error("Failed to list tasks", zap.String("user_email", userEmail), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// Create serves POST /api/tasks for manually entered tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	var req model.Task
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	req.Source = "manual"

	task, err := h.tasks.Create(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to create task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskCreated, Data: task})
	c.JSON(http.StatusOK, task)
}

// Stats serves GET /api/tasks/stats.
func (h *TaskHandler) Stats(c *gin.Context) {
	userEmail := c.Query("user_email")
	if userEmail == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_email required"})
		return
	}

	stats, err := h.tasks.Stats(c.Request.Context(), userEmail)
	if err != nil {
		h.logger.Error("Failed to fetch task stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Update serves PATCH /api/tasks/:id.
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var req repository.TaskUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), id, req)
	if err == repository.ErrNoFields {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to update task", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskUpdated, Data: task})
	c.JSON(http.StatusOK, task)
}

// Complete serves POST /api/tasks/:id/complete.
func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	if err := h.tasks.Complete(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to complete task", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete task"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskUpdated, Data: gin.H{"id": id, "status": model.TaskCompleted}})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Snooze serves POST /api/tasks/:id/snooze.
func (h *TaskHandler) Snooze(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var req struct {
		Duration string `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Duration == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration is required"})
		return
	}

	until, err := SnoozeUntil(req.Duration, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
		return
	}

	if err := h.tasks.Snooze(c.Request.Context(), id, until); err != nil {
		h.logger.Error("Failed to snooze task", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snooze task"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskUpdated, Data: gin.H{"id": id, "status": model.TaskSnoozed, "snoozed_until": until}})
	c.JSON(http.StatusOK, gin.H{"success": true, "snoozed_until": until})
}

// Delete serves DELETE /api/tasks/:id; a soft delete, restorable.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	if err := h.tasks.SoftDelete(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to delete task", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskDeleted, Data: gin.H{"id": id}})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Restore serves POST /api/tasks/:id/restore.
func (h *TaskHandler) Restore(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	if err := h.tasks.Restore(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to restore task", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to restore task"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskUpdated, Data: gin.H{"id": id, "is_deleted": false}})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Bulk serves POST /api/tasks/bulk for complete/delete/snooze over many ids.
func (h *TaskHandler) Bulk(c *gin.Context) {
	var req struct {
		TaskIDs  []int  `json:"task_ids"`
		Action   string `json:"action"`
		Duration string `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.TaskIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_ids required"})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Action {
	case "complete":
		err = h.tasks.BulkComplete(ctx, req.TaskIDs)
	case "delete":
		err = h.tasks.BulkDelete(ctx, req.TaskIDs)
	case "snooze":
		if req.Duration == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "snooze duration required"})
			return
		}
		var until time.Time
		until, err = SnoozeUntil(req.Duration, time.Now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration"})
			return
		}
		err = h.tasks.BulkSnooze(ctx, req.TaskIDs, until)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	if err != nil {
		h.logger.Error("Bulk task operation failed",
			zap.String("action", req.Action),
			zap.Int("count", len(req.TaskIDs)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk operation failed"})
		return
	}

	h.hub.Broadcast(sse.Event{Type: sse.EventTaskUpdated, Data: gin.H{"ids": req.TaskIDs, "action": req.Action}})
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(req.TaskIDs)})
}

func (h *TaskHandler) taskID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

// SnoozeUntil resolves a snooze duration keyword to a wake time. Unknown
// values are tried as RFC3339 timestamps.
func SnoozeUntil(duration string, now time.Time) (time.Time, error) {
	switch duration {
	case "1h":
		return now.Add(time.Hour), nil
	case "4h":
		return now.Add(4 * time.Hour), nil
	case "tomorrow":
		d := now.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, d.Location()), nil
	case "next_week":
		d := now.AddDate(0, 0, 7)
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, d.Location()), nil
	}

	t, err := time.Parse(time.RFC3339, duration)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snooze duration %q", duration)
	}
	return t, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package model

import (
	"encoding/json"
	"time"
)

// Task statuses. Tasks reuse the detection status values plus "completed".
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
	TaskDismissed = "dismissed"
	TaskSnoozed   = "snoozed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is the denormalized task-manager row: a detection and its user response
// merged into one record with scheduling fields and a soft-delete flag.
type Task struct {
	ID              int             `json:"id"`
	EmailID         *int            `json:"email_id,omitempty"`
	ToyType         string          `json:"toy_type"`
	Title           string          `json:"title"`
	Notes           *string         `json:"notes,omitempty"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Priority        string          `json:"priority"`
	SnoozedUntil    *time.Time      `json:"snoozed_until,omitempty"`
	Source          string          `json:"source"`
	DetectionData   json.RawMessage `json:"detection_data,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	Status          string          `json:"status"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	IsDeleted       bool            `json:"is_deleted"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Joined from emails when the task came from one.
	EmailSubject *string `json:"email_subject,omitempty"`
	EmailFrom    *string `json:"email_from,omitempty"`
}

// TaskFilters narrows a task listing. Zero value means no filtering.
type TaskFilters struct {
	Status         []string
	ToyType        []string
	Priority       []string
	Source         []string
	Timeframe      string // overdue, today, tomorrow, this_week, later, no_date, all
	Search         string
	IncludeDeleted bool
}

// TaskStats is the aggregate returned by GET /api/tasks/stats.
type TaskStats struct {
	PendingCount     int `json:"pending_count"`
	CompletedCount   int `json:"completed_count"`
	SnoozedCount     int `json:"snoozed_count"`
	OverdueCount     int `json:"overdue_count"`
	TodayCount       int `json:"today_count"`
	EmailTasksCount  int `json:"email_tasks_count"`
	ManualTasksCount int `json:"manual_tasks_count"`
}

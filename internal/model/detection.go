package model

import (
	"encoding/json"
	"time"
)

// Toy types a classifier can report.
const (
	ToyFollowUp = "follow_up"
	ToyKudos    = "kudos"
	ToyTask     = "task"
	ToyUrgent   = "urgent"
	ToyManual   = "manual"
)

// Detection statuses.
const (
	StatusPending   = "pending"
	StatusActioned  = "actioned"
	StatusDismissed = "dismissed"
	StatusSnoozed   = "snoozed"
)

func ValidToyType(t string) bool {
	switch t {
	case ToyFollowUp, ToyKudos, ToyTask, ToyUrgent:
		return true
	}
	return false
}

func ValidDetectionStatus(s string) bool {
	switch s {
	case StatusPending, StatusActioned, StatusDismissed, StatusSnoozed:
		return true
	}
	return false
}

type Detection struct {
	ID              int             `json:"id"`
	EmailID         int             `json:"email_id"`
	ToyType         string          `json:"toy_type"`
	DetectionData   json.RawMessage `json:"detection_data"`
	ConfidenceScore float64         `json:"confidence_score"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Actions []UserAction `json:"actions,omitempty"`
}

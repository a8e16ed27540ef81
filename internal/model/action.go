package model

import (
	"encoding/json"
	"time"
)

// Action result states.
const (
	ResultPending = "pending"
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// UserAction records what the user did with a detection. Rows are append-only;
// only the result column is ever updated.
type UserAction struct {
	ID           int             `json:"id"`
	DetectionID  int             `json:"detection_id"`
	ActionType   string          `json:"action_type"`
	ActionData   json.RawMessage `json:"action_data,omitempty"`
	Result       string          `json:"result"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

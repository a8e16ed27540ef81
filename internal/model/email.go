package model

import "time"

type Email struct {
	ID             int        `json:"id"`
	GraphMessageID string     `json:"graph_message_id"`
	UserEmail      string     `json:"user_email"`
	FromEmail      string     `json:"from_email"`
	Subject        string     `json:"subject"`
	BodyPreview    string     `json:"body_preview"`
	BodyContent    string     `json:"body_content"`
	ReceivedAt     time.Time  `json:"received_at"`
	AnalyzedAt     *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EmailWithDetections is the joined shape returned by the pending and
// email-details queries.
type EmailWithDetections struct {
	Email
	Detections []Detection `json:"detections"`
}

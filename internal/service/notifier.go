package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtoys/internal/model"
	"mailtoys/pkg/mq"
	"mailtoys/pkg/util"
)

// TrayNotifier publishes new detections to the events exchange for the
// desktop tray app. It is optional: with no MQ configured it does nothing.
// A redis-backed deduper keeps a detection from being announced twice on the
// tray channel; it does not affect what is persisted.
type TrayNotifier struct {
	publisher *mq.Publisher
	deduper   *util.Deduper
	logger    *zap.Logger
}

func NewTrayNotifier(publisher *mq.Publisher, deduper *util.Deduper, logger *zap.Logger) *TrayNotifier {
	return &TrayNotifier{
		publisher: publisher,
		deduper:   deduper,
		logger:    logger,
	}
}

// DetectionCreatedPayload is the MQ contract consumed by the tray app.
type DetectionCreatedPayload struct {
	DetectionID int       `json:"detection_id"`
	EmailID     int       `json:"email_id"`
	ToyType     string    `json:"toy_type"`
	Confidence  float64   `json:"confidence"`
	Subject     string    `json:"subject"`
	From        string    `json:"from"`
	CreatedAt   time.Time `json:"created_at"`
}

func (n *TrayNotifier) DetectionCreated(ctx context.Context, d *model.Detection, e *model.Email) {
	if n == nil || n.publisher == nil {
		return
	}

	if !n.deduper.AcquireOnce(ctx, "tray", d.ID) {
		return
	}

	payload := DetectionCreatedPayload{
		DetectionID: d.ID,
		EmailID:     e.ID,
		ToyType:     d.ToyType,
		Confidence:  d.ConfidenceScore,
		Subject:     e.Subject,
		From:        e.FromEmail,
		CreatedAt:   d.CreatedAt,
	}

	if err := n.publisher.Publish("detection.created", payload); err != nil {
		n.logger.Error("Failed to publish detection to MQ",
			zap.Int("detection_id", d.ID),
			zap.Error(err),
		)
		return
	}

	n.logger.Info("Detection published to tray channel",
		zap.Int("detection_id", d.ID),
		zap.String("toy_type", d.ToyType),
	)
}

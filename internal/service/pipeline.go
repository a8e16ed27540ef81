package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"mailtoys/internal/model"
	"mailtoys/internal/service/classifier"
	"mailtoys/internal/service/graph"
	"mailtoys/internal/service/tokenstore"
	"mailtoys/internal/sse"
	"mailtoys/pkg/logger"
	"mailtoys/pkg/metrics"
	"mailtoys/pkg/trace"
	"mailtoys/pkg/util"
)

// EmailStore is the slice of the email repository the pipeline needs.
type EmailStore interface {
	Insert(ctx context.Context, e *model.Email) (*model.Email, error)
	MarkAnalyzed(ctx context.Context, id int) error
}

// DetectionStore is the slice of the detection repository the pipeline needs.
type DetectionStore interface {
	Insert(ctx context.Context, d *model.Detection) (*model.Detection, error)
}

// TaskStore materializes detections as tasks for the task manager.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)
}

// MessageFetcher fetches the full message a notification points at.
type MessageFetcher interface {
	GetMessage(ctx context.Context, token, resource string) (*graph.Message, error)
}

// Broadcaster pushes events to connected dashboard clients.
type Broadcaster interface {
	Broadcast(ev sse.Event)
}

// EmailClassifier turns an email into detections.
type EmailClassifier interface {
	Classify(ctx context.Context, email classifier.EmailInput) []classifier.ToyDetection
}

// DetectionNotifier pushes a new detection to external channels (tray app).
type DetectionNotifier interface {
	DetectionCreated(ctx context.Context, d *model.Detection, e *model.Email)
}

// Pipeline is the webhook processing chain: validate clientState, fetch the
// message from Graph, classify it, persist email and detections, broadcast.
// Items in a batch are processed sequentially; one item's failure never
// aborts the rest.
type Pipeline struct {
	emails      EmailStore
	detections  DetectionStore
	tasks       TaskStore
	fetcher     MessageFetcher
	classifier  EmailClassifier
	hub         Broadcaster
	notifier    DetectionNotifier
	tokens      *tokenstore.Store
	clientState string
	userEmail   string
	logger      *zap.Logger

	mu       sync.Mutex
	received []model.ReceivedNotification
}

func NewPipeline(
	emails EmailStore,
	detections DetectionStore,
	tasks TaskStore,
	fetcher MessageFetcher,
	emailClassifier EmailClassifier,
	hub Broadcaster,
	notifier DetectionNotifier,
	tokens *tokenstore.Store,
	clientState string,
	userEmail string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		emails:      emails,
		detections:  detections,
		tasks:       tasks,
		fetcher:     fetcher,
		classifier:  emailClassifier,
		hub:         hub,
		notifier:    notifier,
		tokens:      tokens,
		clientState: clientState,
		userEmail:   userEmail,
		logger:      logger,
	}
}

// ProcessBatch walks one webhook delivery. The caller always answers 202 to
// Graph no matter what happens here.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch model.NotificationBatch) {
	for _, n := range batch.Value {
		p.processNotification(ctx, n)
	}
}

func (p *Pipeline) processNotification(ctx context.Context, n model.ChangeNotification) {
	// One trace id per notification item, carried through fetch, classify
	// and persistence logging.
	ctx = trace.WithContext(ctx, trace.GenerateTraceID())
	log := logger.WithTrace(ctx, p.logger).With(
		zap.String("subscription_id", n.SubscriptionID),
		zap.String("change_type", n.ChangeType),
		zap.String("resource", n.Resource),
	)

	if n.ClientState != p.clientState {
		log.Warn("Invalid client state, skipping notification")
		metrics.IncrementWebhookNotification("invalid_state")
		return
	}

	p.mu.Lock()
	p.received = append(p.received, model.ReceivedNotification{
		Timestamp:    time.Now(),
		Notification: n,
	})
	p.mu.Unlock()

	token := p.tokens.Get()
	if token == "" {
		log.Info("No access token stored, skipping message fetch")
		metrics.IncrementWebhookNotification("no_token")
		return
	}

	msg, err := p.fetcher.GetMessage(ctx, token, n.Resource)
	if err != nil {
		log.Error("Failed to fetch message from Graph", zap.Error(err))
		metrics.IncrementWebhookNotification("fetch_failed")
		return
	}

	if _, err := p.ProcessMessage(ctx, p.userEmail, msg); err != nil {
		log.Error("Failed to process message", zap.Error(err))
		metrics.IncrementWebhookNotification("error")
		return
	}
	metrics.IncrementWebhookNotification("processed")
}

// ProcessMessage persists the email, classifies it and fans out the results.
// Shared by the webhook path and the simulate endpoint. Returns how many
// detections were stored.
//
// The email insert dedupes on graph_message_id, but detections do not:
// redelivery of the same resource inserts a second set of detections.
func (p *Pipeline) ProcessMessage(ctx context.Context, userEmail string, msg *graph.Message) (int, error) {
	log := logger.WithTrace(ctx, p.logger)

	preview := msg.BodyPreview
	if preview == "" {
		preview = util.TruncateChars(msg.Body.Content, 500)
	}

	email, err := p.emails.Insert(ctx, &model.Email{
		GraphMessageID: msg.ID,
		UserEmail:      userEmail,
		FromEmail:      msg.FromAddress(),
		Subject:        msg.Subject,
		BodyPreview:    preview,
		BodyContent:    msg.Body.Content,
		ReceivedAt:     msg.ReceivedDateTime,
	})
	if err != nil {
		return 0, err
	}

	detections := p.classifier.Classify(ctx, classifier.EmailInput{
		Subject: msg.Subject,
		From:    msg.FromAddress(),
		Body:    msg.Body.Content,
		SentAt:  msg.SentDateTime,
	})

	if len(detections) == 0 {
		log.Info("No action patterns detected",
			zap.Int("email_id", email.ID),
			zap.String("subject", msg.Subject),
		)
		p.hub.Broadcast(sse.Event{
			Type: sse.EventNewEmail,
			Data: map[string]any{
				"email_id": email.ID,
				"subject":  msg.Subject,
				"from":     email.FromEmail,
				"toy_type": nil,
			},
		})
		return 0, nil
	}

	stored := 0
	for _, det := range detections {
		data, err := json.Marshal(det.DetectionData)
		if err != nil {
			log.Error("Failed to marshal detection data", zap.Error(err))
			continue
		}

		d, err := p.detections.Insert(ctx, &model.Detection{
			EmailID:         email.ID,
			ToyType:         det.ToyType,
			DetectionData:   data,
			ConfidenceScore: det.ConfidenceScore,
			Status:          model.StatusPending,
		})
		if err != nil {
			log.Error("Failed to store detection",
				zap.Int("email_id", email.ID),
				zap.String("toy_type", det.ToyType),
				zap.Error(err),
			)
			continue
		}
		stored++
		metrics.IncrementDetection(d.ToyType)

		log.Info("Detection stored",
			zap.Int("detection_id", d.ID),
			zap.Int("email_id", email.ID),
			zap.String("toy_type", d.ToyType),
			zap.Float64("confidence", d.ConfidenceScore),
		)

		p.hub.Broadcast(sse.Event{
			Type: sse.EventNewEmail,
			Data: map[string]any{
				"email_id":       email.ID,
				"subject":        msg.Subject,
				"from":           email.FromEmail,
				"toy_type":       d.ToyType,
				"detection_id":   d.ID,
				"confidence":     d.ConfidenceScore,
				"detection_data": json.RawMessage(data),
			},
		})

		if p.notifier != nil {
			p.notifier.DetectionCreated(ctx, d, email)
		}

		if p.tasks != nil {
			task, err := p.tasks.Create(ctx, taskFromDetection(det, d, email))
			if err != nil {
				log.Error("Failed to create task from detection",
					zap.Int("detection_id", d.ID),
					zap.Error(err),
				)
			} else {
				p.hub.Broadcast(sse.Event{Type: sse.EventTaskCreated, Data: task})
			}
		}
	}

	if stored > 0 {
		if err := p.emails.MarkAnalyzed(ctx, email.ID); err != nil {
			// The detection rows are already in; a duplicate analysis pass on
			// retry is the cost, not corruption.
			log.Error("Failed to mark email analyzed", zap.Int("email_id", email.ID), zap.Error(err))
		}
	}
	return stored, nil
}

// taskFromDetection derives the task-manager row for a stored detection.
// Title, due date and priority come out of the classifier's detection data;
// anything missing falls back to the email subject.
func taskFromDetection(det classifier.ToyDetection, d *model.Detection, email *model.Email) *model.Task {
	title := ""
	priority := model.PriorityMedium
	var due *time.Time

	str := func(key string) string {
		if v, ok := det.DetectionData[key].(string); ok {
			return v
		}
		return ""
	}

	switch det.ToyType {
	case model.ToyFollowUp:
		title = str("action")
		priority = model.PriorityHigh
	case model.ToyTask:
		title = str("task_description")
	case model.ToyUrgent:
		title = str("reason")
		priority = model.PriorityHigh
	case model.ToyKudos:
		title = str("suggested_action")
		priority = model.PriorityLow
	}
	if title == "" {
		title = email.Subject
	}
	if p := str("priority"); p == model.PriorityLow || p == model.PriorityMedium || p == model.PriorityHigh {
		priority = p
	}
	if deadline, err := time.Parse(time.RFC3339, str("deadline")); err == nil {
		due = &deadline
	}

	confidence := d.ConfidenceScore
	return &model.Task{
		EmailID:         &email.ID,
		ToyType:         det.ToyType,
		Title:           title,
		DueDate:         due,
		Priority:        priority,
		Source:          "email",
		DetectionData:   d.DetectionData,
		ConfidenceScore: &confidence,
		Status:          model.TaskPending,
	}
}

// Received returns the in-memory log of accepted webhook notifications.
func (p *Pipeline) Received() []model.ReceivedNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ReceivedNotification, len(p.received))
	copy(out, p.received)
	return out
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtoys/internal/model"
	"mailtoys/internal/service/classifier"
	"mailtoys/internal/service/graph"
	"mailtoys/internal/service/tokenstore"
	"mailtoys/internal/sse"
)

type fakeEmailStore struct {
	inserted []model.Email
	analyzed []int
	nextID   int
}

func (f *fakeEmailStore) Insert(_ context.Context, e *model.Email) (*model.Email, error) {
	f.nextID++
	stored := *e
	stored.ID = f.nextID
	f.inserted = append(f.inserted, stored)
	return &stored, nil
}

func (f *fakeEmailStore) MarkAnalyzed(_ context.Context, id int) error {
	f.analyzed = append(f.analyzed, id)
	return nil
}

type fakeDetectionStore struct {
	inserted []model.Detection
	nextID   int
}

func (f *fakeDetectionStore) Insert(_ context.Context, d *model.Detection) (*model.Detection, error) {
	f.nextID++
	stored := *d
	stored.ID = f.nextID
	f.inserted = append(f.inserted, stored)
	return &stored, nil
}

type fakeTaskStore struct {
	created []model.Task
	nextID  int
}

func (f *fakeTaskStore) Create(_ context.Context, t *model.Task) (*model.Task, error) {
	f.nextID++
	stored := *t
	stored.ID = f.nextID
	f.created = append(f.created, stored)
	return &stored, nil
}

type fakeFetcher struct {
	msg       *graph.Message
	err       error
	resources []string
}

func (f *fakeFetcher) GetMessage(_ context.Context, _, resource string) (*graph.Message, error) {
	f.resources = append(f.resources, resource)
	if f.err != nil {
		return nil, f.err
	}
	return f.msg, nil
}

type fakeBroadcaster struct {
	events []sse.Event
}

func (f *fakeBroadcaster) Broadcast(ev sse.Event) {
	f.events = append(f.events, ev)
}

type staticClassifier struct {
	detections []classifier.ToyDetection
}

func (s *staticClassifier) Classify(_ context.Context, _ classifier.EmailInput) []classifier.ToyDetection {
	return s.detections
}

type recordingNotifier struct {
	detections []int
}

func (r *recordingNotifier) DetectionCreated(_ context.Context, d *model.Detection, _ *model.Email) {
	r.detections = append(r.detections, d.ID)
}

const testClientState = "AIPowerToysSecret123"

func testMessage() *graph.Message {
	return &graph.Message{
		ID:      "msg-1",
		Subject: "Send the report",
		Body: graph.ItemBody{
			ContentType: "text",
			Content:     "Please send the report by Friday.",
		},
		ReceivedDateTime: time.Now(),
	}
}

type pipelineFixture struct {
	pipeline   *Pipeline
	emails     *fakeEmailStore
	detections *fakeDetectionStore
	tasks      *fakeTaskStore
	fetcher    *fakeFetcher
	hub        *fakeBroadcaster
	notifier   *recordingNotifier
}

func newFixture(token string, detections []classifier.ToyDetection) *pipelineFixture {
	f := &pipelineFixture{
		emails:     &fakeEmailStore{},
		detections: &fakeDetectionStore{},
		tasks:      &fakeTaskStore{},
		fetcher:    &fakeFetcher{msg: testMessage()},
		hub:        &fakeBroadcaster{},
		notifier:   &recordingNotifier{},
	}
	f.pipeline = NewPipeline(
		f.emails,
		f.detections,
		f.tasks,
		f.fetcher,
		&staticClassifier{detections: detections},
		f.hub,
		f.notifier,
		tokenstore.New(token),
		testClientState,
		"user@example.com",
		zap.NewNop(),
	)
	return f
}

func notification(clientState string) model.ChangeNotification {
	return model.ChangeNotification{
		SubscriptionID: "sub-1",
		ClientState:    clientState,
		ChangeType:     "created",
		Resource:       "Users/u/Messages/msg-1",
	}
}

func TestProcessBatchRejectsWrongClientState(t *testing.T) {
	f := newFixture("token", nil)

	f.pipeline.ProcessBatch(context.Background(), model.NotificationBatch{
		Value: []model.ChangeNotification{notification("wrong-secret")},
	})

	assert.Empty(t, f.fetcher.resources, "message must not be fetched")
	assert.Empty(t, f.emails.inserted)
	assert.Empty(t, f.pipeline.Received(), "rejected notifications are not logged")
}

func TestProcessBatchWithoutTokenLogsButSkipsFetch(t *testing.T) {
	f := newFixture("", nil)

	f.pipeline.ProcessBatch(context.Background(), model.NotificationBatch{
		Value: []model.ChangeNotification{notification(testClientState)},
	})

	assert.Empty(t, f.fetcher.resources)
	require.Len(t, f.pipeline.Received(), 1)
	assert.Equal(t, "sub-1", f.pipeline.Received()[0].Notification.SubscriptionID)
}

func TestProcessBatchFetchFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture("token", nil)
	f.fetcher.err = errors.New("graph unavailable")

	f.pipeline.ProcessBatch(context.Background(), model.NotificationBatch{
		Value: []model.ChangeNotification{
			notification(testClientState),
			notification(testClientState),
		},
	})

	assert.Len(t, f.fetcher.resources, 2, "both items are attempted")
	assert.Empty(t, f.emails.inserted)
}

func TestProcessMessageStoresDetectionsAndBroadcasts(t *testing.T) {
	detections := []classifier.ToyDetection{
		{ToyType: model.ToyFollowUp, DetectionData: map[string]any{"action": "reply"}, ConfidenceScore: 0.92},
		{ToyType: model.ToyTask, DetectionData: map[string]any{"task_description": "report"}, ConfidenceScore: 0.78},
	}
	f := newFixture("token", detections)

	stored, err := f.pipeline.ProcessMessage(context.Background(), "user@example.com", testMessage())
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	require.Len(t, f.emails.inserted, 1)
	assert.Equal(t, "msg-1", f.emails.inserted[0].GraphMessageID)
	assert.Equal(t, "user@example.com", f.emails.inserted[0].UserEmail)

	require.Len(t, f.detections.inserted, 2)
	assert.Equal(t, model.StatusPending, f.detections.inserted[0].Status)

	require.Len(t, f.hub.events, 4)
	assert.Equal(t, sse.EventNewEmail, f.hub.events[0].Type)
	assert.Equal(t, sse.EventTaskCreated, f.hub.events[1].Type)

	require.Len(t, f.tasks.created, 2)
	assert.Equal(t, "email", f.tasks.created[0].Source)
	assert.Equal(t, model.ToyFollowUp, f.tasks.created[0].ToyType)

	assert.Equal(t, []int{1, 2}, f.notifier.detections)
	assert.Equal(t, []int{1}, f.emails.analyzed)
}

func TestTaskFromDetectionMapping(t *testing.T) {
	email := &model.Email{ID: 4, Subject: "Budget review"}
	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	det := classifier.ToyDetection{
		ToyType: model.ToyFollowUp,
		DetectionData: map[string]any{
			"action":   "Follow up on: Budget review",
			"deadline": deadline.Format(time.RFC3339),
			"priority": model.PriorityHigh,
		},
		ConfidenceScore: 0.92,
	}
	stored := &model.Detection{ID: 9, EmailID: 4, ToyType: det.ToyType, ConfidenceScore: 0.92}

	task := taskFromDetection(det, stored, email)
	assert.Equal(t, "Follow up on: Budget review", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, "email", task.Source)
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(deadline))
	require.NotNil(t, task.EmailID)
	assert.Equal(t, 4, *task.EmailID)

	// Missing data falls back to the subject and defaults.
	bare := taskFromDetection(classifier.ToyDetection{ToyType: model.ToyTask, DetectionData: map[string]any{}}, stored, email)
	assert.Equal(t, "Budget review", bare.Title)
	assert.Equal(t, model.PriorityMedium, bare.Priority)
	assert.Nil(t, bare.DueDate)
}

func TestProcessMessageZeroDetections(t *testing.T) {
	f := newFixture("token", nil)

	stored, err := f.pipeline.ProcessMessage(context.Background(), "user@example.com", testMessage())
	require.NoError(t, err)
	assert.Equal(t, 0, stored)

	require.Len(t, f.hub.events, 1)
	data, ok := f.hub.events[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Nil(t, data["toy_type"])

	assert.Empty(t, f.emails.analyzed, "nothing detected, email stays unanalyzed")
	assert.Empty(t, f.notifier.detections)
}

func TestProcessMessageBuildsPreviewFromBody(t *testing.T) {
	f := newFixture("token", nil)

	msg := testMessage()
	msg.BodyPreview = ""
	long := make([]byte, 800)
	for i := range long {
		long[i] = 'x'
	}
	msg.Body.Content = string(long)

	_, err := f.pipeline.ProcessMessage(context.Background(), "user@example.com", msg)
	require.NoError(t, err)

	require.Len(t, f.emails.inserted, 1)
	assert.Len(t, f.emails.inserted[0].BodyPreview, 500)
}

func TestProcessMessagePreviewKeepsMultiByteContentValid(t *testing.T) {
	f := newFixture("token", nil)

	msg := testMessage()
	msg.BodyPreview = ""
	msg.Body.Content = strings.Repeat("日", 600)

	_, err := f.pipeline.ProcessMessage(context.Background(), "user@example.com", msg)
	require.NoError(t, err)

	require.Len(t, f.emails.inserted, 1)
	preview := f.emails.inserted[0].BodyPreview
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, 500, utf8.RuneCountInString(preview))
}

func TestProcessMessageRedeliveryInsertsDetectionsAgain(t *testing.T) {
	detections := []classifier.ToyDetection{
		{ToyType: model.ToyUrgent, DetectionData: map[string]any{}, ConfidenceScore: 0.91},
	}
	f := newFixture("token", detections)

	msg := testMessage()
	_, err := f.pipeline.ProcessMessage(context.Background(), "user@example.com", msg)
	require.NoError(t, err)
	_, err = f.pipeline.ProcessMessage(context.Background(), "user@example.com", msg)
	require.NoError(t, err)

	// The email row dedupes upstream; detection rows do not.
	assert.Len(t, f.detections.inserted, 2)
}

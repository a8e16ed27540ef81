package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtoys/internal/service/graph"
	"mailtoys/internal/service/tokenstore"
)

type fakeMessageProcessor struct {
	userEmails []string
	messages   []*graph.Message
}

func (f *fakeMessageProcessor) ProcessMessage(_ context.Context, userEmail string, msg *graph.Message) (int, error) {
	f.userEmails = append(f.userEmails, userEmail)
	f.messages = append(f.messages, msg)
	return 1, nil
}

// graphStub serves the message list and records the bearer token it saw.
func graphStub(t *testing.T, gotToken *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotToken = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": [{"id": "msg-1", "subject": "status update"}]}`))
	}))
}

func simulateRouter(gc *graph.Client, tokens *tokenstore.Store, pipeline *fakeMessageProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGraphHandler(gc, tokens, nil, pipeline, "secret", "", "configured@example.com", zap.NewNop())
	r := gin.New()
	r.POST("/api/simulate", h.Simulate)
	return r
}

func TestSimulateUsesBodyToken(t *testing.T) {
	var gotToken string
	server := graphStub(t, &gotToken)
	defer server.Close()

	pipeline := &fakeMessageProcessor{}
	r := simulateRouter(graph.NewClient(server.URL), tokenstore.New(""), pipeline)

	body := `{"count": 1, "token": "Bearer body-token", "user_email": "tester@example.com"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(body))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body-token", gotToken)
	require.Len(t, pipeline.userEmails, 1)
	assert.Equal(t, "tester@example.com", pipeline.userEmails[0])
	assert.Contains(t, w.Body.String(), `"processed":1`)
}

func TestSimulateFallsBackToStoredToken(t *testing.T) {
	var gotToken string
	server := graphStub(t, &gotToken)
	defer server.Close()

	pipeline := &fakeMessageProcessor{}
	r := simulateRouter(graph.NewClient(server.URL), tokenstore.New("stored-token"), pipeline)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(`{"count": 1}`))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stored-token", gotToken)
	require.Len(t, pipeline.userEmails, 1)
	assert.Equal(t, "configured@example.com", pipeline.userEmails[0])
}

func TestSimulateWithoutAnyToken(t *testing.T) {
	pipeline := &fakeMessageProcessor{}
	r := simulateRouter(graph.NewClient("http://unused"), tokenstore.New(""), pipeline)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(`{}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "/api/update-token")
	assert.Empty(t, pipeline.userEmails)
}

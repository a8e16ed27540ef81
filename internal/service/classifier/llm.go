package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mailtoys/pkg/circuitbreaker"
	"mailtoys/pkg/util"
)

const bodyCharBudget = 1500

const systemPrompt = "You are an AI assistant that detects action patterns in emails. Return only valid JSON."

const promptTemplate = `
Analyze this email and detect any of these "Power Toys" (action patterns):

1. **Follow-Up Toy**: Email contains action items with deadlines
   - Keywords: "send by Friday", "get back to me", "waiting for", "remind me"

2. **Kudos Toy**: Email mentions achievements or good work
   - Keywords: "great work", "excellent job", "congratulations", "well done"

3. **Task Toy**: Email contains actionable items
   - Keywords: "please do", "can you", "need to", "make sure to"

4. **Urgent Request Toy**: Urgent requests (especially from boss)
   - Keywords: "urgent", "ASAP", "immediately", "by today", "critical"

Email details:
Subject: %s
From: %s
Sent: %s
Body: %s

Return JSON with ALL detected toys (can be 0, 1, or multiple):
{
  "detections": [
    {
      "toy_type": "follow_up"|"kudos"|"task"|"urgent",
      "detection_data": {},
      "confidence_score": 0.00-1.00
    }
  ]
}
`

// LLMClient calls an OpenAI-compatible chat-completions endpoint. Confidence
// scores are passed through as the model reports them, uncalibrated.
type LLMClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewLLMClient(apiKey, baseURL, model string) *LLMClient {
	return &LLMClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// While the API is down, fail fast to the keyword rules instead of
		// holding every webhook item for the full HTTP timeout.
		cb: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 2,
		}),
	}
}

// Enabled reports whether an API key is configured.
func (c *LLMClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze asks the model for detections. Any transport error, non-2xx status
// or unparseable content is returned as an error so the caller can fall back.
func (c *LLMClient) Analyze(ctx context.Context, email EmailInput) ([]ToyDetection, error) {
	body := util.TruncateChars(email.Body, bodyCharBudget)

	prompt := fmt.Sprintf(promptTemplate, email.Subject, email.From, email.SentAt.Format(time.RFC3339), body)

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	req.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var chat chatResponse
	err = c.cb.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("openai api error: status %d: %s", resp.StatusCode, text)
		}
		if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
			return fmt.Errorf("failed to decode chat response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	var analysis struct {
		Detections []ToyDetection `json:"detections"`
	}
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &analysis); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return analysis.Detections, nil
}

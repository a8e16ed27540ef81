package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mailtoys/pkg/metrics"
)

// Client is a thin REST client for the handful of Microsoft Graph calls this
// server makes. Tokens are passed per call: the webhook pipeline uses the
// stored dashboard token, test endpoints use tokens supplied in the request.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// StatusError carries the upstream HTTP status so handlers can relay it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph api error: status %d: %s", e.StatusCode, e.Body)
}

// EmailAddress mirrors the Graph emailAddress shape.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is the subset of a Graph mail message this server reads.
type Message struct {
	ID               string      `json:"id"`
	Subject          string      `json:"subject"`
	BodyPreview      string      `json:"bodyPreview"`
	Body             ItemBody    `json:"body"`
	From             *Recipient  `json:"from"`
	ToRecipients     []Recipient `json:"toRecipients"`
	ReceivedDateTime time.Time   `json:"receivedDateTime"`
	SentDateTime     time.Time   `json:"sentDateTime"`
}

// FromAddress returns the sender address or "unknown" when Graph omits it.
func (m *Message) FromAddress() string {
	if m.From == nil || m.From.EmailAddress.Address == "" {
		return "unknown"
	}
	return m.From.EmailAddress.Address
}

// GetMessage fetches the full message a change notification points at.
// The resource comes straight from the notification payload, e.g.
// "Users/{id}/Messages/{id}".
func (c *Client) GetMessage(ctx context.Context, token, resource string) (*Message, error) {
	url := c.baseURL + "/" + strings.TrimLeft(resource, "/")

	var msg Message
	if err := c.do(ctx, http.MethodGet, "get_message", url, token, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListRecentMessages fetches the newest inbox messages, used by the simulate
// endpoint to replay real mail through the pipeline.
func (c *Client) ListRecentMessages(ctx context.Context, token string, count int) ([]Message, error) {
	url := fmt.Sprintf("%s/me/messages?$top=%d&$select=id,subject,from,receivedDateTime,sentDateTime,bodyPreview,body", c.baseURL, count)

	var out struct {
		Value []Message `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "list_messages", url, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// SendMail sends a plain-text message as the token's user.
func (c *Client) SendMail(ctx context.Context, token, to, subject, body string) error {
	payload := map[string]any{
		"message": map[string]any{
			"subject": subject,
			"body": ItemBody{
				ContentType: "Text",
				Content:     body,
			},
			"toRecipients": []Recipient{
				{EmailAddress: EmailAddress{Address: to}},
			},
		},
	}
	return c.do(ctx, http.MethodPost, "send_mail", c.baseURL+"/me/sendMail", token, payload, nil)
}

// SubscriptionRequest is the body for POST /subscriptions.
type SubscriptionRequest struct {
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	Resource           string `json:"resource"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState"`
}

// SubscriptionResponse is what Graph returns for subscription operations.
type SubscriptionResponse struct {
	ID                 string `json:"id"`
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	Resource           string `json:"resource"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState"`
}

// CreateSubscription registers a change subscription. Graph caps mail
// subscriptions at 3 days and never renews them; callers re-create instead.
func (c *Client) CreateSubscription(ctx context.Context, token string, req SubscriptionRequest) (*SubscriptionResponse, error) {
	var sub SubscriptionResponse
	if err := c.do(ctx, http.MethodPost, "create_subscription", c.baseURL+"/subscriptions", token, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) ListSubscriptions(ctx context.Context, token string) ([]SubscriptionResponse, error) {
	var out struct {
		Value []SubscriptionResponse `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "list_subscriptions", c.baseURL+"/subscriptions", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "delete_subscription", c.baseURL+"/subscriptions/"+id, token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, operation, url, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordGraphCallLatency(operation, "error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	metrics.RecordGraphCallLatency(operation, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode graph response: %w", err)
		}
	}
	return nil
}

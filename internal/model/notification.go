package model

import "time"

// ChangeNotification is one item of a Graph webhook delivery.
type ChangeNotification struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
	TenantID       string `json:"tenantId"`
}

// NotificationBatch is the body Graph POSTs to the webhook endpoint.
type NotificationBatch struct {
	Value []ChangeNotification `json:"value"`
}

// ReceivedNotification is the in-memory log entry kept for GET /notifications.
type ReceivedNotification struct {
	Timestamp    time.Time          `json:"timestamp"`
	Notification ChangeNotification `json:"notification"`
}

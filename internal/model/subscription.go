package model

import "time"

// MaxSubscriptionLifetime is the Graph-imposed ceiling for mail resources.
// Graph will not renew past it; expired subscriptions must be re-created.
const MaxSubscriptionLifetime = 3 * 24 * time.Hour

// Subscription is a local, non-authoritative cache of a Graph subscription.
// Microsoft Graph is the source of truth; rows here only exist so the
// dashboard can show what was created and when it expires.
type Subscription struct {
	ID                 string    `json:"id"`
	Resource           string    `json:"resource"`
	ChangeType         string    `json:"change_type"`
	NotificationURL    string    `json:"notification_url"`
	ExpirationDateTime time.Time `json:"expiration_date_time"`
	CreatedAt          time.Time `json:"created_at"`
}

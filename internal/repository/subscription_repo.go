package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailtoys/internal/model"
)

// SubscriptionRepository caches Graph subscriptions locally. Graph owns the
// real state; rows here are display-only and may be stale.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Upsert(ctx context.Context, s *model.Subscription) error {
	query := `
        INSERT INTO subscriptions (id, resource, change_type, notification_url, expiration_date_time)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE
        SET expiration_date_time = EXCLUDED.expiration_date_time
    `
	_, err := r.db.Exec(ctx, query,
		s.ID, s.Resource, s.ChangeType, s.NotificationURL, s.ExpirationDateTime)
	return err
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	return err
}

func (r *SubscriptionRepository) List(ctx context.Context) ([]model.Subscription, error) {
	query := `
        SELECT id, resource, change_type, notification_url, expiration_date_time, created_at
        FROM subscriptions
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		if err := rows.Scan(&s.ID, &s.Resource, &s.ChangeType, &s.NotificationURL, &s.ExpirationDateTime, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

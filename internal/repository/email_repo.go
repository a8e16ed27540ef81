package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailtoys/internal/model"
	"mailtoys/pkg/metrics"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

// Insert stores an email, deduplicating on graph_message_id. When the row
// already exists the stored copy is returned unchanged.
func (r *EmailRepository) Insert(ctx context.Context, e *model.Email) (*model.Email, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "emails", time.Since(start)) }()

	query := `
        INSERT INTO emails (graph_message_id, user_email, from_email, subject, body_preview, body_content, received_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (graph_message_id) DO NOTHING
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		e.GraphMessageID,
		e.UserEmail,
		e.FromEmail,
		e.Subject,
		e.BodyPreview,
		e.BodyContent,
		e.ReceivedAt,
	).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already stored, fetch the existing row.
		return r.GetByGraphID(ctx, e.GraphMessageID)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EmailRepository) GetByID(ctx context.Context, id int) (*model.Email, error) {
	query := `
        SELECT id, graph_message_id, user_email, from_email, subject, body_preview, body_content,
               received_at, analyzed_at, created_at
        FROM emails
        WHERE id = $1
    `
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *EmailRepository) GetByGraphID(ctx context.Context, graphMessageID string) (*model.Email, error) {
	query := `
        SELECT id, graph_message_id, user_email, from_email, subject, body_preview, body_content,
               received_at, analyzed_at, created_at
        FROM emails
        WHERE graph_message_id = $1
    `
	return r.scanOne(r.db.QueryRow(ctx, query, graphMessageID))
}

// ListRecent returns the newest emails for a mailbox.
func (r *EmailRepository) ListRecent(ctx context.Context, userEmail string, limit int) ([]model.Email, error) {
	query := `
        SELECT id, graph_message_id, user_email, from_email, subject, body_preview, body_content,
               received_at, analyzed_at, created_at
        FROM emails
        WHERE user_email = $1
        ORDER BY received_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userEmail, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(
			&e.ID,
			&e.GraphMessageID,
			&e.UserEmail,
			&e.FromEmail,
			&e.Subject,
			&e.BodyPreview,
			&e.BodyContent,
			&e.ReceivedAt,
			&e.AnalyzedAt,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// MarkAnalyzed stamps analyzed_at. Deliberately a separate statement from the
// detection insert; there is no transaction spanning the two.
func (r *EmailRepository) MarkAnalyzed(ctx context.Context, id int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "emails", time.Since(start)) }()

	_, err := r.db.Exec(ctx, `UPDATE emails SET analyzed_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *EmailRepository) scanOne(row pgx.Row) (*model.Email, error) {
	var e model.Email
	err := row.Scan(
		&e.ID,
		&e.GraphMessageID,
		&e.UserEmail,
		&e.FromEmail,
		&e.Subject,
		&e.BodyPreview,
		&e.BodyContent,
		&e.ReceivedAt,
		&e.AnalyzedAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ClearAll wipes emails, detections and actions. Deletion order follows the
// foreign keys.
func (r *EmailRepository) ClearAll(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM user_actions`,
		`DELETE FROM detections`,
		`DELETE FROM emails`,
	} {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

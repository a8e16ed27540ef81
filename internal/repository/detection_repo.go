package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailtoys/internal/model"
	"mailtoys/pkg/metrics"
)

type DetectionRepository struct {
	db *pgxpool.Pool
}

func NewDetectionRepository(db *pgxpool.Pool) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert stores a detection. There is no dedup against earlier detections for
// the same email: a redelivered notification inserts again.
func (r *DetectionRepository) Insert(ctx context.Context, d *model.Detection) (*model.Detection, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "detections", time.Since(start)) }()

	query := `
        INSERT INTO detections (email_id, toy_type, detection_data, confidence_score, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at
    `
	if d.Status == "" {
		d.Status = model.StatusPending
	}
	err := r.db.QueryRow(ctx, query,
		d.EmailID,
		d.ToyType,
		d.DetectionData,
		d.ConfidenceScore,
		d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DetectionRepository) GetByID(ctx context.Context, id int) (*model.Detection, error) {
	query := `
        SELECT id, email_id, toy_type, detection_data, confidence_score, status, created_at, updated_at
        FROM detections
        WHERE id = $1
    `
	var d model.Detection
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.EmailID,
		&d.ToyType,
		&d.DetectionData,
		&d.ConfidenceScore,
		&d.Status,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DetectionRepository) ListByEmail(ctx context.Context, emailID int) ([]model.Detection, error) {
	query := `
        SELECT id, email_id, toy_type, detection_data, confidence_score, status, created_at, updated_at
        FROM detections
        WHERE email_id = $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		var d model.Detection
		if err := rows.Scan(
			&d.ID,
			&d.EmailID,
			&d.ToyType,
			&d.DetectionData,
			&d.ConfidenceScore,
			&d.Status,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

func (r *DetectionRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "detections", time.Since(start)) }()

	_, err := r.db.Exec(ctx,
		`UPDATE detections SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	return err
}

func (r *DetectionRepository) Delete(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, `DELETE FROM detections WHERE id = $1`, id)
	return err
}

// ListPendingByUser returns emails that still have pending detections, each
// with its pending detections attached, newest email first.
func (r *DetectionRepository) ListPendingByUser(ctx context.Context, userEmail string) ([]model.EmailWithDetections, error) {
	query := `
        SELECT e.id, e.graph_message_id, e.user_email, e.from_email, e.subject, e.body_preview,
               e.body_content, e.received_at, e.analyzed_at, e.created_at,
               d.id, d.email_id, d.toy_type, d.detection_data, d.confidence_score, d.status,
               d.created_at, d.updated_at
        FROM emails e
        INNER JOIN detections d ON e.id = d.email_id
        WHERE e.user_email = $1 AND d.status = 'pending'
        ORDER BY e.received_at DESC, d.created_at ASC
    `
	rows, err := r.db.Query(ctx, query, userEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.EmailWithDetections{}
	index := map[int]int{}
	for rows.Next() {
		var e model.Email
		var d model.Detection
		if err := rows.Scan(
			&e.ID, &e.GraphMessageID, &e.UserEmail, &e.FromEmail, &e.Subject, &e.BodyPreview,
			&e.BodyContent, &e.ReceivedAt, &e.AnalyzedAt, &e.CreatedAt,
			&d.ID, &d.EmailID, &d.ToyType, &d.DetectionData, &d.ConfidenceScore, &d.Status,
			&d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		pos, ok := index[e.ID]
		if !ok {
			result = append(result, model.EmailWithDetections{Email: e})
			pos = len(result) - 1
			index[e.ID] = pos
		}
		result[pos].Detections = append(result[pos].Detections, d)
	}
	return result, rows.Err()
}

// DashboardStats aggregates counts for the dashboard header.
type DashboardStats struct {
	TotalEmails        int `json:"total_emails"`
	TotalDetections    int `json:"total_detections"`
	PendingDetections  int `json:"pending_detections"`
	ActionedDetections int `json:"actioned_detections"`
	FollowUpCount      int `json:"follow_up_count"`
	KudosCount         int `json:"kudos_count"`
	TaskCount          int `json:"task_count"`
	UrgentCount        int `json:"urgent_count"`
}

func (r *DetectionRepository) DashboardStats(ctx context.Context, userEmail string) (*DashboardStats, error) {
	query := `
        SELECT
            COUNT(DISTINCT e.id),
            COUNT(d.id),
            COUNT(d.id) FILTER (WHERE d.status = 'pending'),
            COUNT(d.id) FILTER (WHERE d.status = 'actioned'),
            COUNT(d.id) FILTER (WHERE d.toy_type = 'follow_up'),
            COUNT(d.id) FILTER (WHERE d.toy_type = 'kudos'),
            COUNT(d.id) FILTER (WHERE d.toy_type = 'task'),
            COUNT(d.id) FILTER (WHERE d.toy_type = 'urgent')
        FROM emails e
        LEFT JOIN detections d ON e.id = d.email_id
        WHERE e.user_email = $1
    `
	var s DashboardStats
	err := r.db.QueryRow(ctx, query, userEmail).Scan(
		&s.TotalEmails,
		&s.TotalDetections,
		&s.PendingDetections,
		&s.ActionedDetections,
		&s.FollowUpCount,
		&s.KudosCount,
		&s.TaskCount,
		&s.UrgentCount,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

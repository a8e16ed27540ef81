package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailtoys/internal/model"
	"mailtoys/pkg/metrics"
)

var ErrNoFields = errors.New("no fields to update")

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `
    t.id, t.email_id, t.toy_type, t.title, t.notes, t.due_date, t.priority,
    t.snoozed_until, t.source, t.detection_data, t.tags, t.confidence_score,
    t.status, t.completed_at, t.deleted_at, t.is_deleted, t.created_at, t.updated_at,
    e.subject, e.from_email
`

// List returns tasks matching the filters, overdue first, then by due date.
// Snoozed tasks are hidden until their snoozed_until has passed unless the
// snoozed status is explicitly requested.
func (r *TaskRepository) List(ctx context.Context, userEmail string, f model.TaskFilters) ([]model.Task, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("select", "tasks", time.Since(start)) }()

	query := `
        SELECT ` + taskColumns + `
        FROM tasks t
        LEFT JOIN emails e ON t.email_id = e.id
        WHERE (e.user_email = $1 OR t.email_id IS NULL)
    `
	params := []any{userEmail}
	idx := 2

	if !f.IncludeDeleted {
		query += ` AND t.is_deleted = false`
	}

	if len(f.Status) > 0 {
		if contains(f.Status, model.TaskSnoozed) {
			query += fmt.Sprintf(` AND (t.status = ANY($%d) OR (t.status = 'snoozed' AND t.snoozed_until <= NOW()))`, idx)
		} else {
			query += fmt.Sprintf(` AND t.status = ANY($%d)`, idx)
		}
		params = append(params, f.Status)
		idx++
	} else {
		query += ` AND (t.status != 'snoozed' OR t.snoozed_until <= NOW())`
	}

	if len(f.ToyType) > 0 {
		query += fmt.Sprintf(` AND t.toy_type = ANY($%d)`, idx)
		params = append(params, f.ToyType)
		idx++
	}
	if len(f.Priority) > 0 {
		query += fmt.Sprintf(` AND t.priority = ANY($%d)`, idx)
		params = append(params, f.Priority)
		idx++
	}
	if len(f.Source) > 0 {
		query += fmt.Sprintf(` AND t.source = ANY($%d)`, idx)
		params = append(params, f.Source)
		idx++
	}

	if f.Timeframe != "" && f.Timeframe != "all" {
		now := time.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		tomorrow := today.AddDate(0, 0, 1)
		endOfWeek := today.AddDate(0, 0, 7-int(today.Weekday()))

		switch f.Timeframe {
		case "overdue":
			query += fmt.Sprintf(` AND t.due_date < $%d AND t.status = 'pending'`, idx)
			params = append(params, now)
			idx++
		case "today":
			query += fmt.Sprintf(` AND t.due_date >= $%d AND t.due_date < $%d`, idx, idx+1)
			params = append(params, today, tomorrow)
			idx += 2
		case "tomorrow":
			query += fmt.Sprintf(` AND t.due_date >= $%d AND t.due_date < $%d`, idx, idx+1)
			params = append(params, tomorrow, tomorrow.AddDate(0, 0, 1))
			idx += 2
		case "this_week":
			query += fmt.Sprintf(` AND t.due_date >= $%d AND t.due_date <= $%d`, idx, idx+1)
			params = append(params, today, endOfWeek)
			idx += 2
		case "later":
			query += fmt.Sprintf(` AND t.due_date > $%d`, idx)
			params = append(params, endOfWeek)
			idx++
		case "no_date":
			query += ` AND t.due_date IS NULL`
		}
	}

	if f.Search != "" {
		query += fmt.Sprintf(` AND (t.title ILIKE $%d OR t.notes ILIKE $%d OR e.subject ILIKE $%d)`, idx, idx, idx)
		params = append(params, "%"+f.Search+"%")
		idx++
	}

	query += `
        ORDER BY
            CASE WHEN t.due_date < NOW() AND t.status = 'pending' THEN 0 ELSE 1 END,
            t.due_date ASC NULLS LAST,
            t.created_at DESC
    `

	rows, err := r.db.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) GetByID(ctx context.Context, id int) (*model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks t
        LEFT JOIN emails e ON t.email_id = e.id
        WHERE t.id = $1
    `
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("task %d not found", id)
	}
	return scanTask(rows)
}

func (r *TaskRepository) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "tasks", time.Since(start)) }()

	if t.ToyType == "" {
		t.ToyType = model.ToyManual
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Source == "" {
		t.Source = "manual"
	}
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	if len(t.DetectionData) == 0 {
		t.DetectionData = []byte(`{}`)
	}

	query := `
        INSERT INTO tasks (email_id, toy_type, title, notes, due_date, priority, source,
                           detection_data, tags, confidence_score, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.EmailID, t.ToyType, t.Title, t.Notes, t.DueDate, t.Priority, t.Source,
		t.DetectionData, t.Tags, t.ConfidenceScore, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// TaskUpdate carries the mutable columns; nil fields keep their value.
type TaskUpdate struct {
	Title    *string    `json:"title,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Priority *string    `json:"priority,omitempty"`
	Status   *string    `json:"status,omitempty"`
	ToyType  *string    `json:"toy_type,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
}

func (r *TaskRepository) Update(ctx context.Context, id int, u TaskUpdate) (*model.Task, error) {
	fields := []string{}
	params := []any{}
	idx := 1

	appendField := func(col string, v any) {
		fields = append(fields, fmt.Sprintf("%s = $%d", col, idx))
		params = append(params, v)
		idx++
	}

	if u.Title != nil {
		appendField("title", *u.Title)
	}
	if u.Notes != nil {
		appendField("notes", *u.Notes)
	}
	if u.DueDate != nil {
		appendField("due_date", *u.DueDate)
	}
	if u.Priority != nil {
		appendField("priority", *u.Priority)
	}
	if u.Status != nil {
		appendField("status", *u.Status)
	}
	if u.ToyType != nil {
		appendField("toy_type", *u.ToyType)
	}
	if u.Tags != nil {
		appendField("tags", u.Tags)
	}

	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	fields = append(fields, "updated_at = NOW()")
	params = append(params, id)

	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d`, strings.Join(fields, ", "), idx)
	if _, err := r.db.Exec(ctx, query, params...); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *TaskRepository) Complete(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET status = 'completed', completed_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *TaskRepository) Snooze(ctx context.Context, id int, until time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET status = 'snoozed', snoozed_until = $1, updated_at = NOW() WHERE id = $2`, until, id)
	return err
}

// SoftDelete flags the task; the row stays for restore.
func (r *TaskRepository) SoftDelete(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET is_deleted = true, deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *TaskRepository) Restore(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET is_deleted = false, deleted_at = NULL, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *TaskRepository) BulkComplete(ctx context.Context, ids []int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET status = 'completed', completed_at = NOW(), updated_at = NOW() WHERE id = ANY($1)`, ids)
	return err
}

func (r *TaskRepository) BulkDelete(ctx context.Context, ids []int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET is_deleted = true, deleted_at = NOW(), updated_at = NOW() WHERE id = ANY($1)`, ids)
	return err
}

func (r *TaskRepository) BulkSnooze(ctx context.Context, ids []int, until time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE tasks SET status = 'snoozed', snoozed_until = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, until)
	return err
}

func (r *TaskRepository) Stats(ctx context.Context, userEmail string) (*model.TaskStats, error) {
	query := `
        SELECT
            COUNT(*) FILTER (WHERE t.status = 'pending' AND t.is_deleted = false),
            COUNT(*) FILTER (WHERE t.status = 'completed'),
            COUNT(*) FILTER (WHERE t.status = 'snoozed' AND t.is_deleted = false),
            COUNT(*) FILTER (WHERE t.due_date < NOW() AND t.status = 'pending' AND t.is_deleted = false),
            COUNT(*) FILTER (WHERE t.due_date::date = CURRENT_DATE AND t.status = 'pending' AND t.is_deleted = false),
            COUNT(*) FILTER (WHERE t.source = 'email' AND t.is_deleted = false),
            COUNT(*) FILTER (WHERE t.source = 'manual' AND t.is_deleted = false)
        FROM tasks t
        LEFT JOIN emails e ON t.email_id = e.id
        WHERE (e.user_email = $1 OR t.email_id IS NULL)
    `
	var s model.TaskStats
	err := r.db.QueryRow(ctx, query, userEmail).Scan(
		&s.PendingCount,
		&s.CompletedCount,
		&s.SnoozedCount,
		&s.OverdueCount,
		&s.TodayCount,
		&s.EmailTasksCount,
		&s.ManualTasksCount,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.EmailID, &t.ToyType, &t.Title, &t.Notes, &t.DueDate, &t.Priority,
		&t.SnoozedUntil, &t.Source, &t.DetectionData, &t.Tags, &t.ConfidenceScore,
		&t.Status, &t.CompletedAt, &t.DeletedAt, &t.IsDeleted, &t.CreatedAt, &t.UpdatedAt,
		&t.EmailSubject, &t.EmailFrom,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

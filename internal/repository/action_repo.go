package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailtoys/internal/model"
)

type ActionRepository struct {
	db *pgxpool.Pool
}

func NewActionRepository(db *pgxpool.Pool) *ActionRepository {
	return &ActionRepository{db: db}
}

func (r *ActionRepository) Insert(ctx context.Context, a *model.UserAction) (*model.UserAction, error) {
	query := `
        INSERT INTO user_actions (detection_id, action_type, action_data, result, error_message)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, executed_at
    `
	if a.Result == "" {
		a.Result = model.ResultPending
	}
	err := r.db.QueryRow(ctx, query,
		a.DetectionID,
		a.ActionType,
		a.ActionData,
		a.Result,
		a.ErrorMessage,
	).Scan(&a.ID, &a.ExecutedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *ActionRepository) UpdateResult(ctx context.Context, id int, result string, errorMessage *string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE user_actions SET result = $1, error_message = $2 WHERE id = $3`,
		result, errorMessage, id,
	)
	return err
}

func (r *ActionRepository) ListByDetection(ctx context.Context, detectionID int) ([]model.UserAction, error) {
	query := `
        SELECT id, detection_id, action_type, action_data, result, error_message, executed_at
        FROM user_actions
        WHERE detection_id = $1
        ORDER BY executed_at DESC
    `
	rows, err := r.db.Query(ctx, query, detectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := []model.UserAction{}
	for rows.Next() {
		var a model.UserAction
		if err := rows.Scan(
			&a.ID,
			&a.DetectionID,
			&a.ActionType,
			&a.ActionData,
			&a.Result,
			&a.ErrorMessage,
			&a.ExecutedAt,
		); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

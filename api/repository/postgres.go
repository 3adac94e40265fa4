package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"imageUpscaler/api/database"
	"imageUpscaler/api/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (trace_id, input_blob, original_filename, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		task.TraceID,
		task.InputBlob,
		task.OriginalFilename,
		task.Status,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	return err
}

func (r *PostgresRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	// Postgres rejects malformed uuid literals with an error rather
	// than an empty result set; treat those as unknown ids.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTaskNotFound
	}

	query := `
		SELECT id, trace_id, input_blob, original_filename, status, result,
		       failure_kind, failure_message, failure_trace,
		       created_at, updated_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, id)

	var (
		task           models.Task
		failureKind    *string
		failureMessage *string
		failureTrace   *string
	)
	err := row.Scan(
		&task.ID,
		&task.TraceID,
		&task.InputBlob,
		&task.OriginalFilename,
		&task.Status,
		&task.Result,
		&failureKind,
		&failureMessage,
		&failureTrace,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if failureKind != nil {
		task.Failure = &models.Failure{Kind: *failureKind}
		if failureMessage != nil {
			task.Failure.Message = *failureMessage
		}
		if failureTrace != nil {
			task.Failure.Trace = *failureTrace
		}
	}

	return &task, nil
}

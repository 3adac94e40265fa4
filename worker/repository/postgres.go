package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition means the record was not in the expected
	// state: another attempt already claimed or finished the job, or
	// the record is corrupted. The caller abandons the job.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Repository interface {
	MarkStarted(ctx context.Context, taskID string) error
	MarkSuccess(ctx context.Context, taskID string, result string) error
	MarkFailure(ctx context.Context, taskID string, kind, message, trace string) error
}

// PostgresRepo applies task status transitions as compare-and-swap
// updates: the UPDATE only matches when the row is still in the
// expected source state, so two racing attempts can never both commit.
type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) MarkStarted(ctx context.Context, taskID string) error {
	query := `
		UPDATE tasks
		SET status = 'STARTED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`

	tag, err := r.db.Exec(ctx, query, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, taskID)
	}
	return nil
}

func (r *PostgresRepo) MarkSuccess(ctx context.Context, taskID string, result string) error {
	query := `
		UPDATE tasks
		SET status = 'SUCCESS', result = $2, updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status = 'STARTED'
	`

	tag, err := r.db.Exec(ctx, query, taskID, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, taskID)
	}
	return nil
}

func (r *PostgresRepo) MarkFailure(ctx context.Context, taskID string, kind, message, trace string) error {
	query := `
		UPDATE tasks
		SET status = 'FAILURE', failure_kind = $2, failure_message = $3, failure_trace = $4,
		    updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status = 'STARTED'
	`

	tag, err := r.db.Exec(ctx, query, taskID, kind, message, trace)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, taskID)
	}
	return nil
}

// transitionError distinguishes a missing record from one that is in
// the wrong state for the attempted transition.
func (r *PostgresRepo) transitionError(ctx context.Context, taskID string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTaskNotFound
		}
		return err
	}
	return ErrInvalidTransition
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"hail/internal/domain"
	"hail/internal/repository"
)

// TaskRepository is a PostgreSQL implementation of
// repository.TaskRepository.
type TaskRepository struct {
	q Querier
}

// NewTaskRepository creates a new PostgreSQL task repository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{q: db}
}

// Create schedules a task.
func (r *TaskRepository) Create(ctx context.Context, t *domain.ScheduledTask) error {
	query := `
		INSERT INTO scheduled_tasks (id, kind, ref_id, user_id, run_at, done, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		t.ID,
		t.Kind,
		t.RefID,
		t.UserID,
		t.RunAt,
		t.Done,
		t.CreatedAt,
	)

	return err
}

// Due returns at most limit undone tasks whose run time has passed,
// oldest first.
func (r *TaskRepository) Due(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledTask, error) {
	query := `
		SELECT id, kind, ref_id, user_id, run_at, done, created_at
		FROM scheduled_tasks
		WHERE done = FALSE AND run_at <= $1
		ORDER BY run_at ASC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.ScheduledTask
	for rows.Next() {
		var t domain.ScheduledTask
		if err := rows.Scan(
			&t.ID,
			&t.Kind,
			&t.RefID,
			&t.UserID,
			&t.RunAt,
			&t.Done,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// MarkDone marks a task completed.
func (r *TaskRepository) MarkDone(ctx context.Context, id string) error {
	query := `UPDATE scheduled_tasks SET done = TRUE WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CancelByRef marks undone tasks of the kind referring to refID as done
// without running them. Cancelling a task that does not exist is a no-op.
func (r *TaskRepository) CancelByRef(ctx context.Context, kind domain.TaskKind, refID string) error {
	query := `UPDATE scheduled_tasks SET done = TRUE WHERE kind = $1 AND ref_id = $2 AND done = FALSE`

	_, err := r.q.ExecContext(ctx, query, kind, refID)
	return err
}

package repo

import (
	"context"
	"database/sql"
	"errors"

	"dutyline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var assignee sql.NullInt64
	var completedAt sql.NullString
	err := scan(&t.ID, &t.Description, &assignee, &t.Status, &t.DueDate, &t.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.Int64
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

const taskColumns = `id,description,assignee_id,status,due_date,created_at,completed_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(description,assignee_id,status,due_date,created_at,completed_at) VALUES (?,?,?,?,?,?)`,
		t.Description, nullableInt64Ptr(t.AssigneeID), t.Status, t.DueDate, t.CreatedAt, nullableStringPtr(t.CompletedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

// SetTaskAssignee overwrites the assignee unconditionally; reassignment is
// allowed. Returns ErrNotFound when the task does not exist.
func (r Repo) SetTaskAssignee(ctx context.Context, tx *sql.Tx, taskID, assigneeID int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET assignee_id=?, status=? WHERE id=?`, assigneeID, domain.TaskAssigned, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CompleteTask(ctx context.Context, tx *sql.Tx, taskID int64, completedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, completed_at=? WHERE id=?`, domain.TaskCompleted, completedAt, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id ASC`)
}

func (r Repo) ListTasksByAssignee(ctx context.Context, assigneeID int64) ([]domain.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id=? ORDER BY id ASC`, assigneeID)
}

// ListOpenAssigned returns every assigned, not yet completed task. The
// reminder fire iterates this unconditionally, regardless of due date.
func (r Repo) ListOpenAssigned(ctx context.Context) ([]domain.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id IS NOT NULL AND status=? ORDER BY id ASC`, domain.TaskAssigned)
}

func (r Repo) listTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

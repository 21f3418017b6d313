package repo

import (
	"context"
	"database/sql"

	"dutyline/internal/domain"
)

// UpsertRole is idempotent; repeated authentication simply overwrites the row.
func (r Repo) UpsertRole(ctx context.Context, tx *sql.Tx, userID int64, role domain.Role, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO roles(user_id, role, updated_at) VALUES (?,?,?)
ON CONFLICT(user_id) DO UPDATE SET role=excluded.role, updated_at=excluded.updated_at`, userID, string(role), now)
	return err
}

// GetRole returns ErrNotFound for identities that never authenticated.
func (r Repo) GetRole(ctx context.Context, userID int64) (domain.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM roles WHERE user_id=?`, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return domain.Role(role), err
}

func (r Repo) ListRoles(ctx context.Context) (map[int64]domain.Role, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id, role FROM roles ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int64]domain.Role{}
	for rows.Next() {
		var id int64
		var role string
		if err := rows.Scan(&id, &role); err != nil {
			return nil, err
		}
		res[id] = domain.Role(role)
	}
	return res, rows.Err()
}

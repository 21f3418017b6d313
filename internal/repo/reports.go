package repo

import (
	"context"
	"database/sql"

	"dutyline/internal/domain"
)

func (r Repo) InsertReport(ctx context.Context, tx *sql.Tx, rep domain.Report) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO reports(submitted_by,text,ts,photo_path) VALUES (?,?,?,?)`,
		rep.SubmittedBy, rep.Text, rep.TS, nullableStringPtr(rep.PhotoPath))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListReports(ctx context.Context) ([]domain.Report, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,submitted_by,text,ts,photo_path FROM reports ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Report
	for rows.Next() {
		var rep domain.Report
		var photo sql.NullString
		if err := rows.Scan(&rep.ID, &rep.SubmittedBy, &rep.Text, &rep.TS, &photo); err != nil {
			return nil, err
		}
		if photo.Valid {
			rep.PhotoPath = &photo.String
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}

func (r Repo) InsertFeedback(ctx context.Context, tx *sql.Tx, fb domain.Feedback) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO feedback(submitted_by,text,ts) VALUES (?,?,?)`,
		fb.SubmittedBy, fb.Text, fb.TS)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListFeedback(ctx context.Context) ([]domain.Feedback, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,submitted_by,text,ts FROM feedback ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.SubmittedBy, &fb.Text, &fb.TS); err != nil {
			return nil, err
		}
		res = append(res, fb)
	}
	return res, rows.Err()
}

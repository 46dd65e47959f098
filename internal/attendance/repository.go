package attendance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides Postgres persistence for attendance records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRecord upserts the mark for (student, date). Remarking a day keeps the
// single-record-per-day invariant and overwrites status and remarks.
func (r *Repository) SaveRecord(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance_records (school_id, student_id, date, status, remarks, recorded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW(), NOW())
		ON CONFLICT (student_id, date) DO UPDATE
			SET status = EXCLUDED.status, remarks = EXCLUDED.remarks,
				recorded_by = EXCLUDED.recorded_by, updated_at = NOW()
		RETURNING id`,
		rec.SchoolID, rec.StudentID, rec.Date, string(rec.Status), rec.Remarks, rec.RecordedBy).Scan(&id)
	return id, err
}

// ListByDate returns a school's records for one day keyed in student order.
func (r *Repository) ListByDate(ctx context.Context, schoolID int64, date time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, school_id, student_id, date, status, COALESCE(remarks, ''), recorded_by, created_at, updated_at
		FROM attendance_records
		WHERE school_id = $1 AND date = $2
		ORDER BY student_id`, schoolID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.SchoolID, &rec.StudentID, &rec.Date, &status,
			&rec.Remarks, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		list = append(list, rec)
	}
	return list, rows.Err()
}

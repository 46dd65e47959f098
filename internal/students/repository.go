package students

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akada-sms/akada/internal/shared"
)

// Repository provides Postgres persistence for students.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const studentColumns = `id, school_id, admission_number, first_name, last_name,
	COALESCE(class_name, ''), COALESCE(guardian_name, ''), COALESCE(guardian_phone, ''),
	date_of_birth, is_active, created_at, updated_at`

func scanStudent(row pgx.Row) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.SchoolID, &s.AdmissionNumber, &s.FirstName, &s.LastName,
		&s.ClassName, &s.GuardianName, &s.GuardianPhone,
		&s.DateOfBirth, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Student{}, shared.ErrNotFound
		}
		return Student{}, err
	}
	return s, nil
}

// GetStudent fetches a student by ID regardless of school. Callers enforce
// tenant scoping before exposing the record.
func (r *Repository) GetStudent(ctx context.Context, id int64) (Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	return scanStudent(row)
}

// SchoolOf returns the owning school of a student, shared.ErrNotFound when
// the student does not exist.
func (r *Repository) SchoolOf(ctx context.Context, id int64) (int64, error) {
	var schoolID int64
	err := r.pool.QueryRow(ctx, `SELECT school_id FROM students WHERE id = $1`, id).Scan(&schoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return schoolID, nil
}

// ListStudents returns a page of active students in one school, newest first.
func (r *Repository) ListStudents(ctx context.Context, schoolID int64, limit, offset int) ([]Student, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE school_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, schoolID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// CountStudents counts active students in one school.
func (r *Repository) CountStudents(ctx context.Context, schoolID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE school_id = $1 AND is_active`, schoolID).Scan(&total)
	return total, err
}

// CreateStudent inserts a student. A duplicate admission number within the
// school yields shared.ErrDuplicate.
func (r *Repository) CreateStudent(ctx context.Context, s Student) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO students (school_id, admission_number, first_name, last_name,
			class_name, guardian_name, guardian_phone, date_of_birth, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, TRUE, NOW(), NOW())
		RETURNING id`,
		s.SchoolID, s.AdmissionNumber, s.FirstName, s.LastName,
		s.ClassName, s.GuardianName, s.GuardianPhone, s.DateOfBirth).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, shared.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// UpdateStudent rewrites a student's editable fields.
func (r *Repository) UpdateStudent(ctx context.Context, s Student) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE students
		SET first_name = $2, last_name = $3, class_name = NULLIF($4, ''),
			guardian_name = NULLIF($5, ''), guardian_phone = NULLIF($6, ''),
			date_of_birth = $7, updated_at = NOW()
		WHERE id = $1 AND school_id = $8`,
		s.ID, s.FirstName, s.LastName, s.ClassName,
		s.GuardianName, s.GuardianPhone, s.DateOfBirth, s.SchoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateStudent soft-deletes a student within its school.
func (r *Repository) DeactivateStudent(ctx context.Context, id, schoolID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE students SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND school_id = $2 AND is_active`, id, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

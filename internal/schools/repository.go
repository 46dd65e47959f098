package schools

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akada-sms/akada/internal/shared"
)

// Repository provides Postgres persistence for schools.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schoolColumns = `id, name, subdomain, COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, ''), is_active, created_at, updated_at`

func scanSchool(row pgx.Row) (School, error) {
	var s School
	err := row.Scan(&s.ID, &s.Name, &s.Subdomain, &s.Address, &s.Phone, &s.Email, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return School{}, shared.ErrNotFound
		}
		return School{}, err
	}
	return s, nil
}

// GetSchool fetches a school by ID.
func (r *Repository) GetSchool(ctx context.Context, id int64) (School, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
	return scanSchool(row)
}

// FindBySubdomain resolves the school serving a subdomain.
func (r *Repository) FindBySubdomain(ctx context.Context, subdomain string) (School, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE subdomain = $1`, subdomain)
	return scanSchool(row)
}

// IsActiveSchool reports whether a school exists and is active.
func (r *Repository) IsActiveSchool(ctx context.Context, schoolID int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM schools WHERE id = $1`, schoolID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return active, nil
}

// ListForUser returns all active schools the user holds an active membership
// in, with the name of the role held there.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]SchoolOption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.name, s.subdomain, COALESCE(s.address, ''), COALESCE(s.phone, ''), COALESCE(s.email, ''),
		       s.is_active, s.created_at, s.updated_at, r.name
		FROM schools s
		JOIN memberships m ON m.school_id = s.id AND m.is_active
		JOIN roles r ON r.id = m.role_id
		WHERE m.user_id = $1 AND s.is_active
		ORDER BY s.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []SchoolOption
	for rows.Next() {
		var opt SchoolOption
		s := &opt.School
		if err := rows.Scan(&s.ID, &s.Name, &s.Subdomain, &s.Address, &s.Phone, &s.Email,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt, &opt.RoleName); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// CreateSchool inserts a new school inside the given transaction.
func (r *Repository) CreateSchool(ctx context.Context, tx pgx.Tx, s School) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO schools (name, subdomain, address, phone, email, is_active, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), TRUE, NOW(), NOW())
		RETURNING id`,
		s.Name, s.Subdomain, s.Address, s.Phone, s.Email).Scan(&id)
	return id, err
}

// UpdateSchool updates the mutable profile fields of a school.
func (r *Repository) UpdateSchool(ctx context.Context, s School) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schools
		SET name = $2, address = NULLIF($3, ''), phone = NULLIF($4, ''), email = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Address, s.Phone, s.Email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

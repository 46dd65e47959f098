package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akada-sms/akada/internal/shared"
)

const uniqueViolation = "23505"

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so the same queries
// run standalone or inside a caller's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence for roles and
// memberships. It implements Store for the resolver.
type Repository struct {
	db querier
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewTxRepository binds a repository to an open transaction.
func NewTxRepository(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const roleColumns = `id, school_id, name, description, COALESCE(system_role_type, ''), permissions,
	can_manage_roles, can_manage_staff, can_manage_students, can_manage_academics,
	can_manage_finances, can_view_reports, can_communicate, can_manage_attendance,
	is_system_role, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var systemType string
	err := row.Scan(
		&role.ID, &role.SchoolID, &role.Name, &role.Description, &systemType, &role.Permissions,
		&role.CanManageRoles, &role.CanManageStaff, &role.CanManageStudents, &role.CanManageAcademics,
		&role.CanManageFinances, &role.CanViewReports, &role.CanCommunicate, &role.CanManageAttendance,
		&role.IsSystemRole, &role.IsActive, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return Role{}, err
	}
	role.SystemRoleType = SystemRoleType(systemType)
	return role, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns the active roles of a school ordered by name.
func (r *Repository) ListRoles(ctx context.Context, schoolID int64) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE school_id = $1 AND is_active ORDER BY name`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO roles (school_id, name, description, system_role_type, permissions,
			can_manage_roles, can_manage_staff, can_manage_students, can_manage_academics,
			can_manage_finances, can_view_reports, can_communicate, can_manage_attendance,
			is_system_role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE, NOW(), NOW())
		RETURNING `+roleColumns,
		role.SchoolID, role.Name, role.Description, string(role.SystemRoleType), role.Permissions,
		role.CanManageRoles, role.CanManageStaff, role.CanManageStudents, role.CanManageAcademics,
		role.CanManageFinances, role.CanViewReports, role.CanCommunicate, role.CanManageAttendance,
		role.IsSystemRole,
	)
	created, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, shared.ErrDuplicate
		}
		return Role{}, err
	}
	return created, nil
}

// UpdateRole replaces the mutable fields of a role. Permission flags and the
// token list are only written together, never partially, so a role's grants
// cannot shrink by accident.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE roles SET name = $2, description = $3, permissions = $4,
			can_manage_roles = $5, can_manage_staff = $6, can_manage_students = $7,
			can_manage_academics = $8, can_manage_finances = $9, can_view_reports = $10,
			can_communicate = $11, can_manage_attendance = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, role.Permissions,
		role.CanManageRoles, role.CanManageStaff, role.CanManageStudents,
		role.CanManageAcademics, role.CanManageFinances, role.CanViewReports,
		role.CanCommunicate, role.CanManageAttendance,
	)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return updated, nil
}

// DeactivateRole soft-deletes a role. Roles with active memberships stay in
// place so existing members keep a resolvable role record.
func (r *Repository) DeactivateRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM memberships WHERE role_id = $1 AND is_active)`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const membershipQuery = `
	SELECT m.id, m.user_id, m.school_id, m.role_id, m.is_active, m.created_at, ` + roleColumnsPrefixed + `
	FROM memberships m
	JOIN roles r ON r.id = m.role_id`

const roleColumnsPrefixed = `r.id, r.school_id, r.name, r.description, COALESCE(r.system_role_type, ''), r.permissions,
	r.can_manage_roles, r.can_manage_staff, r.can_manage_students, r.can_manage_academics,
	r.can_manage_finances, r.can_view_reports, r.can_communicate, r.can_manage_attendance,
	r.is_system_role, r.is_active, r.created_at, r.updated_at`

func scanMembership(row pgx.Row) (*Membership, error) {
	var m Membership
	var role Role
	var systemType string
	err := row.Scan(
		&m.ID, &m.UserID, &m.SchoolID, &m.RoleID, &m.IsActive, &m.CreatedAt,
		&role.ID, &role.SchoolID, &role.Name, &role.Description, &systemType, &role.Permissions,
		&role.CanManageRoles, &role.CanManageStaff, &role.CanManageStudents, &role.CanManageAcademics,
		&role.CanManageFinances, &role.CanViewReports, &role.CanCommunicate, &role.CanManageAttendance,
		&role.IsSystemRole, &role.IsActive, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	role.SystemRoleType = SystemRoleType(systemType)
	m.Role = &role
	return &m, nil
}

// MembershipFor returns the unique active membership of a user in a school.
func (r *Repository) MembershipFor(ctx context.Context, userID, schoolID int64) (*Membership, error) {
	row := r.db.QueryRow(ctx, membershipQuery+` WHERE m.user_id = $1 AND m.school_id = $2 AND m.is_active`, userID, schoolID)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// FirstMembership returns the user's oldest active membership.
func (r *Repository) FirstMembership(ctx context.Context, userID int64) (*Membership, error) {
	row := r.db.QueryRow(ctx, membershipQuery+` WHERE m.user_id = $1 AND m.is_active ORDER BY m.id LIMIT 1`, userID)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListMemberships returns the active memberships of a school.
func (r *Repository) ListMemberships(ctx context.Context, schoolID int64) ([]Membership, error) {
	rows, err := r.db.Query(ctx, membershipQuery+` WHERE m.school_id = $1 AND m.is_active ORDER BY m.id`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}
	return memberships, rows.Err()
}

// CreateMembership links a user to a school under a role. The (user, school)
// pair is unique; a second assignment reports shared.ErrDuplicate.
func (r *Repository) CreateMembership(ctx context.Context, userID, schoolID, roleID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO memberships (user_id, school_id, role_id, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		RETURNING id`, userID, schoolID, roleID).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, shared.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// ReassignMembership moves an existing membership to a different role. The
// membership must belong to the given school; foreign ids report
// shared.ErrNotFound.
func (r *Repository) ReassignMembership(ctx context.Context, membershipID, roleID, schoolID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE memberships SET role_id = $2
		WHERE id = $1 AND school_id = $3 AND is_active`, membershipID, roleID, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateMembership offboards a user from a school. The membership must
// belong to the given school; foreign ids report shared.ErrNotFound.
func (r *Repository) DeactivateMembership(ctx context.Context, membershipID, schoolID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE memberships SET is_active = FALSE
		WHERE id = $1 AND school_id = $2`, membershipID, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RememberedSchool returns the school the user last worked in, zero when the
// user never selected one.
func (r *Repository) RememberedSchool(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(current_school_id, 0) FROM users WHERE id = $1`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

package staff

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akada-sms/akada/internal/shared"
)

// Repository provides Postgres persistence for staff records and invitations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `id, school_id, user_id, first_name, last_name, email,
	COALESCE(phone, ''), COALESCE(position, ''), is_active, created_at, updated_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.SchoolID, &m.UserID, &m.FirstName, &m.LastName, &m.Email,
		&m.Phone, &m.Position, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, shared.ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

// GetMember fetches a staff record by ID.
func (r *Repository) GetMember(ctx context.Context, id int64) (Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM staff_members WHERE id = $1`, id)
	return scanMember(row)
}

// SchoolOf returns the owning school of a staff record.
func (r *Repository) SchoolOf(ctx context.Context, id int64) (int64, error) {
	var schoolID int64
	err := r.pool.QueryRow(ctx, `SELECT school_id FROM staff_members WHERE id = $1`, id).Scan(&schoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return schoolID, nil
}

// ListMembers returns all active staff of a school ordered by name.
func (r *Repository) ListMembers(ctx context.Context, schoolID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+memberColumns+`
		FROM staff_members
		WHERE school_id = $1 AND is_active
		ORDER BY last_name, first_name`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// CreateMember inserts a staff record.
func (r *Repository) CreateMember(ctx context.Context, m Member) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff_members (school_id, user_id, first_name, last_name, email, phone, position, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), TRUE, NOW(), NOW())
		RETURNING id`,
		m.SchoolID, m.UserID, m.FirstName, m.LastName, m.Email, m.Phone, m.Position).Scan(&id)
	return id, err
}

// LinkUser attaches a user account to a staff record.
func (r *Repository) LinkUser(ctx context.Context, memberID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff_members SET user_id = $2, updated_at = NOW() WHERE id = $1`, memberID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateMember soft-deletes a staff record within its school.
func (r *Repository) DeactivateMember(ctx context.Context, id, schoolID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff_members SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND school_id = $2 AND is_active`, id, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateInvitation stores a pending invitation. Only one open invitation per
// email and school may exist.
func (r *Repository) CreateInvitation(ctx context.Context, inv Invitation) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff_invitations (school_id, email, role_id, token, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id`,
		inv.SchoolID, inv.Email, inv.RoleID, inv.Token, inv.InvitedBy, inv.ExpiresAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_staff_invitations_open" {
			return 0, shared.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// InvitationByToken looks up a pending invitation by its token.
func (r *Repository) InvitationByToken(ctx context.Context, token string) (Invitation, error) {
	var inv Invitation
	err := r.pool.QueryRow(ctx, `
		SELECT id, school_id, email, role_id, token, invited_by, expires_at, accepted_at, created_at
		FROM staff_invitations
		WHERE token = $1`, token).Scan(
		&inv.ID, &inv.SchoolID, &inv.Email, &inv.RoleID, &inv.Token,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invitation{}, shared.ErrNotFound
		}
		return Invitation{}, err
	}
	return inv, nil
}

// ListInvitations returns open invitations for a school.
func (r *Repository) ListInvitations(ctx context.Context, schoolID int64) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, school_id, email, role_id, token, invited_by, expires_at, accepted_at, created_at
		FROM staff_invitations
		WHERE school_id = $1 AND accepted_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.SchoolID, &inv.Email, &inv.RoleID, &inv.Token,
			&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// MarkAccepted stamps an invitation as used. Returns shared.ErrNotFound when
// it was already accepted, preventing token reuse.
func (r *Repository) MarkAccepted(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff_invitations SET accepted_at = $2
		WHERE id = $1 AND accepted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReapExpiredInvitations deletes unaccepted invitations past their expiry.
func (r *Repository) ReapExpiredInvitations(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM staff_invitations
		WHERE accepted_at IS NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RevokeInvitation deletes an open invitation.
func (r *Repository) RevokeInvitation(ctx context.Context, id, schoolID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM staff_invitations
		WHERE id = $1 AND school_id = $2 AND accepted_at IS NULL`, id, schoolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/akada-sms/akada/internal/shared"
)

// AdminStore persists roles and memberships for administration. *Repository
// implements it.
type AdminStore interface {
	ListRoles(ctx context.Context, schoolID int64) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeactivateRole(ctx context.Context, id int64) error
	ListMemberships(ctx context.Context, schoolID int64) ([]Membership, error)
	CreateMembership(ctx context.Context, userID, schoolID, roleID int64) (int64, error)
	ReassignMembership(ctx context.Context, membershipID, roleID, schoolID int64) error
	DeactivateMembership(ctx context.Context, membershipID, schoolID int64) error
}

// Service orchestrates role and membership administration.
type Service struct {
	repo   AdminStore
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo AdminStore, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// record writes an audit entry; failures are logged, never surfaced.
func (s *Service) record(ctx context.Context, schoolID int64, action, entity string, entityID int64) {
	if s.audit == nil {
		return
	}
	actorID := int64(0)
	if p := principalFromContext(ctx); p != nil {
		actorID = p.GetID()
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		SchoolID: schoolID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// ListRoles returns the active roles of a school.
func (s *Service) ListRoles(ctx context.Context, schoolID int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, schoolID)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a custom role for a school.
func (s *Service) CreateRole(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if role.SchoolID <= 0 {
		return Role{}, errors.New("rbac: role requires a school")
	}
	role.IsSystemRole = false
	role.SystemRoleType = ""
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, created.SchoolID, "role.create", "role", created.ID)
	return created, nil
}

// UpdateRole replaces the mutable fields of a role. System roles keep their
// tag; only name, description, tokens and flags change.
func (s *Service) UpdateRole(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, updated.SchoolID, "role.update", "role", updated.ID)
	return updated, nil
}

// DeactivateRole soft-deletes a role without active members.
func (s *Service) DeactivateRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, role.SchoolID, "role.deactivate", "role", id)
	return nil
}

// ListMemberships returns a school's active memberships with roles attached.
func (s *Service) ListMemberships(ctx context.Context, schoolID int64) ([]Membership, error) {
	return s.repo.ListMemberships(ctx, schoolID)
}

// AssignRole links a user to a school under a role. The role must belong to
// the target school.
func (s *Service) AssignRole(ctx context.Context, userID, schoolID, roleID int64) (int64, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return 0, err
	}
	if role.SchoolID != 0 && role.SchoolID != schoolID {
		return 0, errors.New("rbac: role belongs to another school")
	}
	id, err := s.repo.CreateMembership(ctx, userID, schoolID, roleID)
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("membership created",
			slog.Int64("user_id", userID),
			slog.Int64("school_id", schoolID),
			slog.Int64("role_id", roleID))
	}
	s.record(ctx, schoolID, "membership.create", "membership", id)
	return id, nil
}

// ReassignRole moves a membership of the given school to a different role.
// The target role must belong to that school, and memberships of other
// schools report shared.ErrNotFound.
func (s *Service) ReassignRole(ctx context.Context, schoolID, membershipID, roleID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.SchoolID != 0 && role.SchoolID != schoolID {
		return shared.ErrNotFound
	}
	if err := s.repo.ReassignMembership(ctx, membershipID, roleID, schoolID); err != nil {
		return err
	}
	s.record(ctx, schoolID, "membership.reassign", "membership", membershipID)
	return nil
}

// RemoveMembership offboards a user from the given school. Memberships of
// other schools report shared.ErrNotFound so ids never leak across tenants.
func (s *Service) RemoveMembership(ctx context.Context, schoolID, membershipID int64) error {
	if err := s.repo.DeactivateMembership(ctx, membershipID, schoolID); err != nil {
		return err
	}
	s.record(ctx, schoolID, "membership.remove", "membership", membershipID)
	return nil
}

// SeedSchool provisions a freshly onboarded school inside the caller's
// transaction: the system roles are created and the onboarding user becomes
// the school's principal. The principal role holds the wildcard; the teacher
// role carries the academic tokens plus the matching flags.
func (s *Service) SeedSchool(ctx context.Context, tx pgx.Tx, schoolID, ownerUserID int64) error {
	store := NewTxRepository(tx)

	var principalRoleID int64
	for _, preset := range systemRolePresets(schoolID) {
		created, err := store.CreateRole(ctx, preset)
		if err != nil {
			return err
		}
		if created.SystemRoleType == RolePrincipal {
			principalRoleID = created.ID
		}
	}
	if principalRoleID == 0 {
		return errors.New("rbac: principal preset missing")
	}

	membershipID, err := store.CreateMembership(ctx, ownerUserID, schoolID, principalRoleID)
	if err != nil {
		return err
	}
	s.record(ctx, schoolID, "membership.create", "membership", membershipID)
	return nil
}

func systemRolePresets(schoolID int64) []Role {
	return []Role{
		{
			SchoolID:            schoolID,
			Name:                "Principal",
			Description:         "School principal with full administrative access",
			SystemRoleType:      RolePrincipal,
			Permissions:         []string{string(CapWildcard)},
			CanManageRoles:      true,
			CanManageStaff:      true,
			CanManageStudents:   true,
			CanManageAcademics:  true,
			CanManageFinances:   true,
			CanViewReports:      true,
			CanCommunicate:      true,
			CanManageAttendance: true,
			IsSystemRole:        true,
		},
		{
			SchoolID:       schoolID,
			Name:           "Teacher",
			Description:    "Teaching staff with academic permissions",
			SystemRoleType: RoleTeacher,
			Permissions: []string{
				string(CapManageAttendance),
				string(CapManageScores),
				string(CapViewReports),
				string(CapCommunicate),
			},
			CanManageStudents:   true,
			CanManageAcademics:  true,
			CanViewReports:      true,
			CanCommunicate:      true,
			CanManageAttendance: true,
			IsSystemRole:        true,
		},
		{
			SchoolID:          schoolID,
			Name:              "Admin Staff",
			Description:       "Administrative staff handling records and billing",
			SystemRoleType:    RoleAdminStaff,
			Permissions:       []string{},
			CanManageStudents: true,
			CanManageFinances: true,
			CanViewReports:    true,
			IsSystemRole:      true,
		},
	}
}

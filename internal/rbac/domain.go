package rbac

import "time"

// Capability is a single permission token gating one class of operation.
type Capability string

// The capability vocabulary. Tokens outside this set never match a boolean
// flag and are only granted when listed verbatim in a role's permission list.
const (
	CapManageAcademics  Capability = "manage_academics"
	CapManageStudents   Capability = "manage_students"
	CapManageStaff      Capability = "manage_staff"
	CapManageRoles      Capability = "manage_roles"
	CapManageFinances   Capability = "manage_finances"
	CapViewReports      Capability = "view_reports"
	CapCommunicate      Capability = "communicate"
	CapManageAttendance Capability = "manage_attendance"

	// CapWildcard grants every capability, known or not.
	CapWildcard Capability = "*"

	// Legacy tokens still emitted by older routes. Admissions falls under
	// student management, score entry under academics.
	CapManageAdmissions Capability = "manage_admissions"
	CapManageScores     Capability = "manage_scores"
)

// Capabilities lists the canonical vocabulary, without wildcard and legacy
// synonyms. Used for role forms and seeding.
func Capabilities() []Capability {
	return []Capability{
		CapManageAcademics,
		CapManageStudents,
		CapManageStaff,
		CapManageRoles,
		CapManageFinances,
		CapViewReports,
		CapCommunicate,
		CapManageAttendance,
	}
}

// SystemRoleType tags a kind of role independent of its display name. Only
// RoleSuperAdmin carries special meaning for permission checks; new tags may
// be added freely.
type SystemRoleType string

const (
	RoleSuperAdmin     SystemRoleType = "super_admin"
	RolePrincipal      SystemRoleType = "principal"
	RoleTeacher        SystemRoleType = "teacher"
	RoleAdminStaff     SystemRoleType = "admin_staff"
	RoleHeadTeacher    SystemRoleType = "head_teacher"
	RoleDepartmentHead SystemRoleType = "department_head"
)

// Role is a named bundle of capabilities scoped to a school. SchoolID zero
// marks a platform-wide role. Capabilities come from two additive sources:
// the Permissions token list and the fixed boolean flags; granting through
// one never shrinks what the other grants.
type Role struct {
	ID             int64
	SchoolID       int64
	Name           string
	Description    string
	SystemRoleType SystemRoleType
	Permissions    []string

	CanManageRoles      bool
	CanManageStaff      bool
	CanManageStudents   bool
	CanManageAcademics  bool
	CanManageFinances   bool
	CanViewReports      bool
	CanCommunicate      bool
	CanManageAttendance bool

	IsSystemRole bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// flag maps a capability token onto its backing boolean field. The switch is
// exhaustive over the vocabulary including legacy synonyms; unknown tokens
// report mapped=false and never fall through to a flag.
func (r Role) flag(c Capability) (granted, mapped bool) {
	switch c {
	case CapManageAcademics, CapManageScores:
		return r.CanManageAcademics, true
	case CapManageStudents, CapManageAdmissions:
		return r.CanManageStudents, true
	case CapManageStaff:
		return r.CanManageStaff, true
	case CapManageRoles:
		return r.CanManageRoles, true
	case CapManageFinances:
		return r.CanManageFinances, true
	case CapViewReports:
		return r.CanViewReports, true
	case CapCommunicate:
		return r.CanCommunicate, true
	case CapManageAttendance:
		return r.CanManageAttendance, true
	default:
		return false, false
	}
}

// HasCapability reports whether the role alone grants the capability.
// Precedence: super-admin tag, wildcard token, literal token, boolean flag.
func (r Role) HasCapability(c Capability) bool {
	if r.SystemRoleType == RoleSuperAdmin {
		return true
	}
	for _, p := range r.Permissions {
		if Capability(p) == CapWildcard || Capability(p) == c {
			return true
		}
	}
	if granted, mapped := r.flag(c); mapped {
		return granted
	}
	return false
}

// Membership links one user to one school under one role. At most one
// membership exists per (user, school).
type Membership struct {
	ID        int64
	UserID    int64
	SchoolID  int64
	RoleID    int64
	Role      *Role
	IsActive  bool
	CreatedAt time.Time
}

// Principal describes the authenticated actor.
type Principal interface {
	GetID() int64
	IsSuperUser() bool
}

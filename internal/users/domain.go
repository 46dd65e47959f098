package users

import "time"

// User represents a user account. A user may belong to several schools
// through memberships; CurrentSchoolID remembers the school they last worked
// in. Superusers bypass all school-scoped permission checks.
type User struct {
	ID              int64
	Email           string
	Name            string
	PhoneNumber     string
	IsActive        bool
	IsSuperuser     bool
	CurrentSchoolID int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GetID implements rbac.Principal.
func (u *User) GetID() int64 {
	return u.ID
}

// IsSuperUser implements rbac.Principal.
func (u *User) IsSuperUser() bool {
	return u.IsSuperuser
}

// GetEmail returns the login email address.
func (u *User) GetEmail() string {
	return u.Email
}

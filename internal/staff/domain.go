package staff

import "time"

// Member is an employment record at a school. A member may be linked to a
// user account once the person accepts an invitation.
type Member struct {
	ID        int64
	SchoolID  int64
	UserID    *int64
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Position  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins the member's names for display.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// Invitation asks a person to join a school with a preassigned role. The
// token travels by email and expires.
type Invitation struct {
	ID         int64
	SchoolID   int64
	Email      string
	RoleID     int64
	Token      string
	InvitedBy  int64
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the invitation can no longer be accepted.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

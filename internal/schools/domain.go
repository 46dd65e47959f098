package schools

import "time"

// School is a tenant. Every membership, role and record belongs to exactly
// one school.
type School struct {
	ID        int64
	Name      string
	Subdomain string
	Address   string
	Phone     string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SchoolOption is one selectable school on the selection screen, paired with
// the role the user holds there.
type SchoolOption struct {
	School   School
	RoleName string
}

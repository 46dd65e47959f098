package students

import "time"

// Student is a learner enrolled at a school. Admission numbers are unique
// within a school, not globally.
type Student struct {
	ID              int64
	SchoolID        int64
	AdmissionNumber string
	FirstName       string
	LastName        string
	ClassName       string
	GuardianName    string
	GuardianPhone   string
	DateOfBirth     *time.Time
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName joins the student's names for display.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Status renders the enrolment state for display.
func (s Student) Status() string {
	if s.IsActive {
		return "Active"
	}
	return "Withdrawn"
}

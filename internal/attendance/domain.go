package attendance

import "time"

// Status classifies a student's presence on a school day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
	StatusSick    Status = "sick"
)

// Statuses returns the full marking vocabulary in display order.
func Statuses() []Status {
	return []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusSick}
}

// Valid reports whether s is a known marking status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusSick:
		return true
	}
	return false
}

// Record is one student's attendance mark for one day. A student has at most
// one record per date; remarking a day replaces the earlier status.
type Record struct {
	ID         int64
	SchoolID   int64
	StudentID  int64
	Date       time.Time
	Status     Status
	Remarks    string
	RecordedBy int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

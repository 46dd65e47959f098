package students_test

import (
	"testing"

	"github.com/akada-sms/akada/internal/students"
	_ "github.com/akada-sms/akada/testing"
)

func TestStudentFullName(t *testing.T) {
	s := students.Student{FirstName: "Chidi", LastName: "Okafor"}
	if got := s.FullName(); got != "Chidi Okafor" {
		t.Fatalf("FullName() = %q", got)
	}
}

func TestStudentStatus(t *testing.T) {
	if got := (students.Student{IsActive: true}).Status(); got != "Active" {
		t.Fatalf("Status() = %q, want Active", got)
	}
	if got := (students.Student{}).Status(); got != "Withdrawn" {
		t.Fatalf("Status() = %q, want Withdrawn", got)
	}
}

package attendance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/akada-sms/akada/internal/shared"
)

// ErrInvalidStatus is returned when a mark uses an unknown status token.
var ErrInvalidStatus = errors.New("attendance: invalid status")

// ErrFutureDate is returned when a mark targets a day that has not happened.
var ErrFutureDate = errors.New("attendance: date is in the future")

// Store persists attendance records. *Repository implements it.
type Store interface {
	SaveRecord(ctx context.Context, rec Record) (int64, error)
	ListByDate(ctx context.Context, schoolID int64, date time.Time) ([]Record, error)
}

// studentDirectory answers which school owns a student.
type studentDirectory interface {
	SchoolOf(ctx context.Context, id int64) (int64, error)
}

// Service implements daily attendance marking.
type Service struct {
	logger   *slog.Logger
	repo     Store
	students studentDirectory
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo Store, students studentDirectory) *Service {
	return &Service{logger: logger, repo: repo, students: students, now: time.Now}
}

// Mark records a student's status for a day. The student must belong to the
// marking school; unknown and cross-school students both report
// shared.ErrNotFound.
func (s *Service) Mark(ctx context.Context, rec Record) (int64, error) {
	if !rec.Status.Valid() {
		return 0, ErrInvalidStatus
	}
	if rec.SchoolID <= 0 {
		return 0, errors.New("attendance: school is required")
	}
	if rec.Date.IsZero() {
		return 0, errors.New("attendance: date is required")
	}
	rec.Date = rec.Date.Truncate(24 * time.Hour)
	if rec.Date.After(s.now()) {
		return 0, ErrFutureDate
	}

	owner, err := s.students.SchoolOf(ctx, rec.StudentID)
	if err != nil {
		return 0, err
	}
	if owner != rec.SchoolID {
		return 0, shared.ErrNotFound
	}

	id, err := s.repo.SaveRecord(ctx, rec)
	if err != nil {
		return 0, err
	}
	s.logger.Info("attendance marked",
		slog.Int64("school_id", rec.SchoolID),
		slog.Int64("student_id", rec.StudentID),
		slog.String("status", string(rec.Status)))
	return id, nil
}

// SheetForDate returns a school's records for one day.
func (s *Service) SheetForDate(ctx context.Context, schoolID int64, date time.Time) ([]Record, error) {
	return s.repo.ListByDate(ctx, schoolID, date.Truncate(24*time.Hour))
}

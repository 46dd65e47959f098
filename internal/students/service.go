package students

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/akada-sms/akada/internal/shared"
)

// Service implements student management on top of the repository.
type Service struct {
	logger *slog.Logger
	repo   *Repository
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo *Repository) *Service {
	return &Service{logger: logger, repo: repo}
}

// ListStudents returns one page of a school's student roster.
func (s *Service) ListStudents(ctx context.Context, schoolID int64, page int) ([]Student, shared.Pagination, error) {
	total, err := s.repo.CountStudents(ctx, schoolID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, 25, total)
	list, err := s.repo.ListStudents(ctx, schoolID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, p, nil
}

// GetStudent fetches a student scoped to a school. Students of other schools
// are reported as absent rather than forbidden.
func (s *Service) GetStudent(ctx context.Context, id, schoolID int64) (Student, error) {
	student, err := s.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if student.SchoolID != schoolID {
		return Student{}, shared.ErrNotFound
	}
	return student, nil
}

// SchoolOf exposes ownership lookup for access checks.
func (s *Service) SchoolOf(ctx context.Context, id int64) (int64, error) {
	return s.repo.SchoolOf(ctx, id)
}

// Admit enrolls a new student.
func (s *Service) Admit(ctx context.Context, student Student) (int64, error) {
	student.AdmissionNumber = strings.TrimSpace(student.AdmissionNumber)
	student.FirstName = strings.TrimSpace(student.FirstName)
	student.LastName = strings.TrimSpace(student.LastName)
	if student.SchoolID <= 0 {
		return 0, errors.New("students: school is required")
	}
	if student.AdmissionNumber == "" {
		return 0, errors.New("students: admission number is required")
	}
	if student.FirstName == "" || student.LastName == "" {
		return 0, errors.New("students: first and last name are required")
	}

	id, err := s.repo.CreateStudent(ctx, student)
	if err != nil {
		return 0, err
	}
	s.logger.Info("student admitted",
		slog.Int64("student_id", id),
		slog.Int64("school_id", student.SchoolID),
		slog.String("admission_number", student.AdmissionNumber))
	return id, nil
}

// Update rewrites an existing student's details.
func (s *Service) Update(ctx context.Context, student Student) error {
	if strings.TrimSpace(student.FirstName) == "" || strings.TrimSpace(student.LastName) == "" {
		return errors.New("students: first and last name are required")
	}
	return s.repo.UpdateStudent(ctx, student)
}

// Withdraw soft-deletes a student from the roster.
func (s *Service) Withdraw(ctx context.Context, id, schoolID int64) error {
	if err := s.repo.DeactivateStudent(ctx, id, schoolID); err != nil {
		return err
	}
	s.logger.Info("student withdrawn",
		slog.Int64("student_id", id),
		slog.Int64("school_id", schoolID))
	return nil
}

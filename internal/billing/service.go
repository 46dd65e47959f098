package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/akada-sms/akada/internal/shared"
)

// studentDirectory confirms a student belongs to the billing school.
type studentDirectory interface {
	SchoolOf(ctx context.Context, studentID int64) (int64, error)
}

// Service implements invoice management.
type Service struct {
	logger   *slog.Logger
	repo     *Repository
	students studentDirectory
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo *Repository, students studentDirectory) *Service {
	return &Service{logger: logger, repo: repo, students: students}
}

// ListInvoices returns one page of a school's invoices.
func (s *Service) ListInvoices(ctx context.Context, schoolID int64, page int) ([]Invoice, shared.Pagination, error) {
	total, err := s.repo.CountInvoices(ctx, schoolID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, 25, total)
	list, err := s.repo.ListInvoices(ctx, schoolID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, p, nil
}

// GetInvoice fetches an invoice scoped to a school. Invoices of other
// schools are reported as absent.
func (s *Service) GetInvoice(ctx context.Context, id, schoolID int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.SchoolID != schoolID {
		return Invoice{}, shared.ErrNotFound
	}
	return inv, nil
}

// SchoolOf exposes ownership lookup for access checks.
func (s *Service) SchoolOf(ctx context.Context, id int64) (int64, error) {
	return s.repo.SchoolOf(ctx, id)
}

// Issue creates an invoice for a student of the same school. Numbers follow
// the INV-<seq> pattern per school.
func (s *Service) Issue(ctx context.Context, inv Invoice) (int64, error) {
	if inv.SchoolID <= 0 {
		return 0, errors.New("billing: school is required")
	}
	if inv.AmountMinor <= 0 {
		return 0, errors.New("billing: amount must be positive")
	}

	studentSchool, err := s.students.SchoolOf(ctx, inv.StudentID)
	if err != nil {
		return 0, err
	}
	if studentSchool != inv.SchoolID {
		return 0, shared.ErrNotFound
	}

	seq, err := s.repo.NextInvoiceNumber(ctx, inv.SchoolID)
	if err != nil {
		return 0, err
	}
	inv.Number = fmt.Sprintf("INV-%06d", seq)

	id, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return 0, err
	}
	s.logger.Info("invoice issued",
		slog.Int64("invoice_id", id),
		slog.Int64("school_id", inv.SchoolID),
		slog.Int64("student_id", inv.StudentID),
		slog.String("number", inv.Number))
	return id, nil
}

// Settle marks an issued invoice as paid.
func (s *Service) Settle(ctx context.Context, id, schoolID int64) error {
	if err := s.repo.SettleInvoice(ctx, id, schoolID); err != nil {
		return err
	}
	s.logger.Info("invoice settled",
		slog.Int64("invoice_id", id),
		slog.Int64("school_id", schoolID))
	return nil
}

// Void cancels an issued invoice.
func (s *Service) Void(ctx context.Context, id, schoolID int64) error {
	if err := s.repo.VoidInvoice(ctx, id, schoolID); err != nil {
		return err
	}
	s.logger.Info("invoice voided",
		slog.Int64("invoice_id", id),
		slog.Int64("school_id", schoolID))
	return nil
}

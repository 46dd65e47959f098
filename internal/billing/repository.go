package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akada-sms/akada/internal/shared"
)

// Repository provides Postgres persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, school_id, student_id, number, COALESCE(description, ''),
	amount_minor, status, due_date, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.SchoolID, &inv.StudentID, &inv.Number, &inv.Description,
		&inv.AmountMinor, &inv.Status, &inv.DueDate, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

// GetInvoice fetches an invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// SchoolOf returns the owning school of an invoice.
func (r *Repository) SchoolOf(ctx context.Context, id int64) (int64, error) {
	var schoolID int64
	err := r.pool.QueryRow(ctx, `SELECT school_id FROM invoices WHERE id = $1`, id).Scan(&schoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return schoolID, nil
}

// ListInvoices returns a school's invoices, newest first.
func (r *Repository) ListInvoices(ctx context.Context, schoolID int64, limit, offset int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE school_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, schoolID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// CountInvoices counts a school's invoices.
func (r *Repository) CountInvoices(ctx context.Context, schoolID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE school_id = $1`, schoolID).Scan(&total)
	return total, err
}

// NextInvoiceNumber allocates the next sequential invoice number for a
// school.
func (r *Repository) NextInvoiceNumber(ctx context.Context, schoolID int64) (int64, error) {
	var next int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM (
			SELECT CAST(SPLIT_PART(number, '-', 2) AS BIGINT) AS seq
			FROM invoices WHERE school_id = $1
		) numbered`, schoolID).Scan(&next)
	return next, err
}

// CreateInvoice inserts a new invoice in issued state.
func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (school_id, student_id, number, description, amount_minor, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NOW(), NOW())
		RETURNING id`,
		inv.SchoolID, inv.StudentID, inv.Number, inv.Description,
		inv.AmountMinor, StatusIssued, inv.DueDate).Scan(&id)
	return id, err
}

// SettleInvoice marks an issued invoice paid. Already settled or void
// invoices yield shared.ErrNotFound.
func (r *Repository) SettleInvoice(ctx context.Context, id, schoolID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $3, paid_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND school_id = $2 AND status = $4`,
		id, schoolID, StatusPaid, StatusIssued)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// VoidInvoice cancels an issued invoice.
func (r *Repository) VoidInvoice(ctx context.Context, id, schoolID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $3, updated_at = NOW()
		WHERE id = $1 AND school_id = $2 AND status = $4`,
		id, schoolID, StatusVoid, StatusIssued)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

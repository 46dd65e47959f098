package billing

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// InvoiceStatus tracks an invoice through its lifecycle.
type InvoiceStatus string

const (
	StatusIssued InvoiceStatus = "issued"
	StatusPaid   InvoiceStatus = "paid"
	StatusVoid   InvoiceStatus = "void"
)

// Invoice bills a student's guardians for fees. Amounts are stored in minor
// currency units (kobo).
type Invoice struct {
	ID          int64
	SchoolID    int64
	StudentID   int64
	Number      string
	Description string
	AmountMinor int64
	Status      InvoiceStatus
	DueDate     *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var amountPrinter = message.NewPrinter(language.English)

// AmountDisplay renders the invoice amount with grouping, e.g. "₦1,250.00".
func (i Invoice) AmountDisplay() string {
	value := float64(i.AmountMinor) / 100
	return amountPrinter.Sprintf("₦%v",
		number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

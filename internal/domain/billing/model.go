// Package billing prices and totals procedure invoices and numbers them with
// gapless yearly folios.
package billing

import (
	"strings"
	"time"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain"
)

// Invoice is immutable once created: Total is the sum of line subtotals at creation.
type Invoice struct {
	ID        id.ID            `db:"id" json:"id"`
	Folio     *string          `db:"folio" json:"folio"`
	Date      time.Time        `db:"invoice_date" json:"date"`
	PatientID string           `db:"patient_id" json:"patientId"`
	Total     types.MinorUnits `db:"total" json:"total"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`

	Lines []InvoiceLine `db:"-" json:"lines"`
}

// InvoiceLine is one priced procedure on an invoice.
type InvoiceLine struct {
	InvoiceID     id.ID            `db:"invoice_id" json:"-"`
	LineNo        int              `db:"line_no" json:"lineNo"`
	ProcedureCode string           `db:"procedure_code" json:"procedureCode"`
	Quantity      types.Quantity   `db:"quantity" json:"quantity"`
	Tooth         *string          `db:"tooth" json:"tooth,omitempty"`
	UnitPrice     types.MinorUnits `db:"unit_price" json:"unitPrice"`
	Subtotal      types.MinorUnits `db:"subtotal" json:"subtotal"`
}

// InvoiceInput is the typed request to create an invoice.
type InvoiceInput struct {
	PatientID string
	// Date defaults to today (UTC).
	Date  *time.Time
	Lines []LineInput
}

// LineInput is one requested line. A zero Quantity means 1; a nil UnitPrice
// takes the price from the procedure catalog.
type LineInput struct {
	ProcedureCode string
	Quantity      types.Quantity
	Tooth         *string
	UnitPrice     *types.MinorUnits
}

// Validate rejects malformed input before any storage access.
func (in InvoiceInput) Validate() error {
	if strings.TrimSpace(in.PatientID) == "" {
		return apperror.NewValidation("patientId is required").
			WithDetail("field", "patientId")
	}
	if len(in.Lines) == 0 {
		return apperror.NewValidation("invoice must have at least one line").
			WithDetail("field", "lines")
	}
	for i, line := range in.Lines {
		if strings.TrimSpace(line.ProcedureCode) == "" {
			return apperror.NewValidation("procedureCode is required").
				WithDetail("field", "lines.procedureCode").
				WithDetail("line", i+1)
		}
		if line.Quantity < 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines.quantity").
				WithDetail("line", i+1)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unitPrice must not be negative").
				WithDetail("field", "lines.unitPrice").
				WithDetail("line", i+1)
		}
	}
	return nil
}

// Filter narrows invoice listings. Results are newest first.
type Filter struct {
	domain.ListFilter
	PatientID string
	From      *time.Time
	To        *time.Time
}

// FolioAssignment reports a folio given to a legacy invoice by the backfill.
type FolioAssignment struct {
	InvoiceID id.ID     `json:"invoiceId"`
	Date      time.Time `json:"date"`
	Folio     string    `json:"folio"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package billing

import (
	"context"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/catalogs/procedure"
)

// Repository persists invoices and their lines.
type Repository interface {
	// Create inserts the invoice header.
	Create(ctx context.Context, inv *Invoice) error

	// SaveLines inserts all lines of one invoice.
	SaveLines(ctx context.Context, lines []InvoiceLine) error

	// GetByID returns the header only.
	GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error)

	// GetLines returns lines ordered by line number.
	GetLines(ctx context.Context, invoiceID id.ID) ([]InvoiceLine, error)

	List(ctx context.Context, filter Filter) (domain.ListResult[*Invoice], error)

	DeleteLines(ctx context.Context, invoiceID id.ID) error
	Delete(ctx context.Context, invoiceID id.ID) error

	// ListPendingFolio locks invoices without a folio, ordered by date then id.
	ListPendingFolio(ctx context.Context) ([]*Invoice, error)

	SetFolio(ctx context.Context, invoiceID id.ID, folio string) error
}

// ProcedureLookup resolves procedure codes for pricing.
type ProcedureLookup interface {
	GetByCode(ctx context.Context, code string) (*procedure.Procedure, error)
}

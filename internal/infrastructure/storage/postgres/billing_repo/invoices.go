// Package billing_repo provides the PostgreSQL implementation of the invoice repository.
package billing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable = "invoices"
	linesTable    = "invoice_lines"
)

var invoiceColumns = postgres.ExtractDBColumns[billing.Invoice]()

// Quantity is stored scaled by types.QuantityScale in a bigint column.
var lineColumns = postgres.ExtractDBColumns[billing.InvoiceLine]()

var invoiceUniqueFields = postgres.UniqueField{
	"invoices_folio_key": "folio",
	"invoice_lines_pkey": "lineNo",
}

// InvoiceRepo implements billing.Repository.
type InvoiceRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ billing.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txManager *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   postgres.Builder(),
	}
}

// Create inserts the invoice header.
func (r *InvoiceRepo) Create(ctx context.Context, inv *billing.Invoice) error {
	sql, args, err := r.builder.Insert(invoicesTable).
		Columns(invoiceColumns...).
		Values(inv.ID, inv.Folio, inv.Date, inv.PatientID, inv.Total, inv.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "insert invoice", "invoice", folioOrID(inv), invoiceUniqueFields)
	}
	return nil
}

// SaveLines inserts lines in one round-trip. Must run inside a transaction.
func (r *InvoiceRepo) SaveLines(ctx context.Context, lines []billing.InvoiceLine) error {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{
			l.InvoiceID, l.LineNo, l.ProcedureCode, l.Quantity.Int64Scaled(), l.Tooth, l.UnitPrice, l.Subtotal,
		})
	}
	if _, err := r.inserter.Insert(ctx, linesTable, lineColumns, rows); err != nil {
		var invoiceID any
		if len(lines) > 0 {
			invoiceID = lines[0].InvoiceID
		}
		return postgres.MapError(err, "insert invoice lines", "invoice line", invoiceID, invoiceUniqueFields)
	}
	return nil
}

// GetByID returns the invoice header.
func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*billing.Invoice, error) {
	sql, args, err := r.builder.Select(invoiceColumns...).
		From(invoicesTable).
		Where(squirrel.Eq{"id": invoiceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv billing.Invoice
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &inv, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get invoice", "invoice", invoiceID, nil)
	}
	return &inv, nil
}

// GetLines returns the lines of an invoice ordered by line number.
func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID id.ID) ([]billing.InvoiceLine, error) {
	sql, args, err := r.builder.Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := []billing.InvoiceLine{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get invoice lines: %w", err)
	}
	return lines, nil
}

// List returns invoice headers, newest date first. The date bounds are inclusive
// and Search matches the folio.
func (r *InvoiceRepo) List(ctx context.Context, filter billing.Filter) (domain.ListResult[*billing.Invoice], error) {
	q := r.builder.Select(invoiceColumns...).From(invoicesTable)

	if filter.PatientID != "" {
		q = q.Where(squirrel.Eq{"patient_id": filter.PatientID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"invoice_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"invoice_date": *filter.To})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"folio": "%" + filter.Search + "%"})
	}

	return postgres.SelectPage[*billing.Invoice](ctx, r.txManager.GetQuerier(ctx), q,
		[]string{"invoice_date DESC", "created_at DESC"}, filter.ListFilter)
}

// DeleteLines removes every line of an invoice.
func (r *InvoiceRepo) DeleteLines(ctx context.Context, invoiceID id.ID) error {
	sql, args, err := r.builder.Delete(linesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete invoice lines: %w", err)
	}
	return nil
}

// Delete removes the header. The line foreign key rejects it while lines remain.
func (r *InvoiceRepo) Delete(ctx context.Context, invoiceID id.ID) error {
	sql, args, err := r.builder.Delete(invoicesTable).
		Where(squirrel.Eq{"id": invoiceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "delete invoice", "invoice", invoiceID, nil)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "delete invoice", "invoice", invoiceID, nil)
	}
	return nil
}

// ListPendingFolio locks every invoice without a folio, oldest first.
func (r *InvoiceRepo) ListPendingFolio(ctx context.Context) ([]*billing.Invoice, error) {
	sql, args, err := r.builder.Select(invoiceColumns...).
		From(invoicesTable).
		Where(squirrel.Eq{"folio": nil}).
		OrderBy("invoice_date", "id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*billing.Invoice
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list invoices without folio: %w", err)
	}
	return out, nil
}

// SetFolio assigns a folio to an invoice that has none.
func (r *InvoiceRepo) SetFolio(ctx context.Context, invoiceID id.ID, folio string) error {
	sql, args, err := r.builder.Update(invoicesTable).
		Set("folio", folio).
		Where(squirrel.Eq{"id": invoiceID, "folio": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "set folio", "invoice", folio, invoiceUniqueFields)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: either the invoice is gone or it already has a folio.
	if _, err := r.GetByID(ctx, invoiceID); err != nil {
		return err
	}
	return apperror.NewConflict("invoice already has a folio").
		WithDetail("invoice_id", invoiceID)
}

func folioOrID(inv *billing.Invoice) any {
	if inv.Folio != nil {
		return *inv.Folio
	}
	return inv.ID
}

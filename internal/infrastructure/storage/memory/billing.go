package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/billing"
)

// InvoiceRepo implements billing.Repository.
type InvoiceRepo struct{ s *Store }

// Invoices returns the invoice repository.
func (s *Store) Invoices() *InvoiceRepo { return &InvoiceRepo{s: s} }

func (r *InvoiceRepo) Create(ctx context.Context, inv *billing.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.invoices[inv.ID]; ok {
			return apperror.NewDuplicate("invoice", "id", inv.ID.String())
		}
		if inv.Folio != nil {
			for _, other := range st.invoices {
				if other.Folio != nil && *other.Folio == *inv.Folio {
					return apperror.NewDuplicate("invoice", "folio", *inv.Folio)
				}
			}
		}
		header := *inv
		header.Lines = nil
		st.invoices[inv.ID] = header
		return nil
	})
}

func (r *InvoiceRepo) SaveLines(ctx context.Context, lines []billing.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.s.do(ctx, func(st *state) error {
		invoiceID := lines[0].InvoiceID
		if _, ok := st.invoices[invoiceID]; !ok {
			return apperror.NewConflict("lines reference unknown invoice").
				WithDetail("invoice_id", invoiceID)
		}
		stored := slices.Clone(st.lines[invoiceID])
		st.lines[invoiceID] = append(stored, lines...)
		return nil
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*billing.Invoice, error) {
	var out *billing.Invoice
	err := r.s.do(ctx, func(st *state) error {
		inv, ok := st.invoices[invoiceID]
		if !ok {
			return apperror.NewNotFound("invoice", invoiceID)
		}
		out = &inv
		return nil
	})
	return out, err
}

func (r *InvoiceRepo) GetLines(ctx context.Context, invoiceID id.ID) ([]billing.InvoiceLine, error) {
	var out []billing.InvoiceLine
	err := r.s.do(ctx, func(st *state) error {
		out = slices.Clone(st.lines[invoiceID])
		sort.Slice(out, func(i, j int) bool { return out[i].LineNo < out[j].LineNo })
		return nil
	})
	return out, err
}

func (r *InvoiceRepo) List(ctx context.Context, filter billing.Filter) (domain.ListResult[*billing.Invoice], error) {
	var res domain.ListResult[*billing.Invoice]
	err := r.s.do(ctx, func(st *state) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		matched := make([]*billing.Invoice, 0)
		for _, inv := range st.invoices {
			if filter.PatientID != "" && inv.PatientID != filter.PatientID {
				continue
			}
			if filter.From != nil && inv.Date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && inv.Date.After(*filter.To) {
				continue
			}
			if search != "" && (inv.Folio == nil || !containsFold(*inv.Folio, search)) {
				continue
			}
			inv := inv
			matched = append(matched, &inv)
		}
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].Date.Equal(matched[j].Date) {
				return matched[i].Date.After(matched[j].Date)
			}
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
		res = domain.Paginate(matched, filter.ListFilter)
		return nil
	})
	return res, err
}

func (r *InvoiceRepo) DeleteLines(ctx context.Context, invoiceID id.ID) error {
	return r.s.do(ctx, func(st *state) error {
		delete(st.lines, invoiceID)
		return nil
	})
}

func (r *InvoiceRepo) Delete(ctx context.Context, invoiceID id.ID) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.invoices[invoiceID]; !ok {
			return apperror.NewNotFound("invoice", invoiceID)
		}
		if len(st.lines[invoiceID]) > 0 {
			return apperror.NewConflict("invoice still has lines").
				WithDetail("invoice_id", invoiceID)
		}
		delete(st.invoices, invoiceID)
		return nil
	})
}

func (r *InvoiceRepo) ListPendingFolio(ctx context.Context) ([]*billing.Invoice, error) {
	var out []*billing.Invoice
	err := r.s.do(ctx, func(st *state) error {
		for _, inv := range st.invoices {
			if inv.Folio == nil {
				inv := inv
				out = append(out, &inv)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].Date.Equal(out[j].Date) {
				return out[i].Date.Before(out[j].Date)
			}
			return out[i].ID.String() < out[j].ID.String()
		})
		return nil
	})
	return out, err
}

func (r *InvoiceRepo) SetFolio(ctx context.Context, invoiceID id.ID, folio string) error {
	return r.s.do(ctx, func(st *state) error {
		inv, ok := st.invoices[invoiceID]
		if !ok {
			return apperror.NewNotFound("invoice", invoiceID)
		}
		if inv.Folio != nil {
			return apperror.NewConflict("invoice already has a folio").
				WithDetail("invoice_id", invoiceID)
		}
		inv.Folio = &folio
		st.invoices[invoiceID] = inv
		return nil
	})
}

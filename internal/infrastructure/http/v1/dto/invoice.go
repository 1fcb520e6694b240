package dto

import (
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain/billing"
)

// CreateInvoiceRequest creates an invoice. Date is YYYY-MM-DD and defaults to today.
type CreateInvoiceRequest struct {
	PatientID string               `json:"patientId" binding:"required,max=64"`
	Date      string               `json:"date"`
	Lines     []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// InvoiceLineRequest is one requested line. Quantity accepts a number or a
// decimal string with up to 4 fractional digits; omitted means 1.
type InvoiceLineRequest struct {
	ProcedureCode string            `json:"procedureCode" binding:"required,max=32"`
	Quantity      types.Quantity    `json:"quantity"`
	Tooth         *string           `json:"tooth" binding:"omitempty,max=8"`
	UnitPrice     *types.MinorUnits `json:"unitPrice"`
}

// ToInput converts the request to the billing input.
func (r CreateInvoiceRequest) ToInput() (billing.InvoiceInput, error) {
	date, err := ParseDate("date", r.Date)
	if err != nil {
		return billing.InvoiceInput{}, err
	}
	in := billing.InvoiceInput{
		PatientID: r.PatientID,
		Date:      date,
		Lines:     make([]billing.LineInput, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, billing.LineInput{
			ProcedureCode: l.ProcedureCode,
			Quantity:      l.Quantity,
			Tooth:         l.Tooth,
			UnitPrice:     l.UnitPrice,
		})
	}
	return in, nil
}

// InvoiceListQuery filters the invoice list. Dates are inclusive YYYY-MM-DD.
type InvoiceListQuery struct {
	ListQuery
	PatientID string `form:"patientId"`
	From      string `form:"from"`
	To        string `form:"to"`
}

// InvoiceFilter converts the query into a billing filter.
func (q InvoiceListQuery) InvoiceFilter() (billing.Filter, error) {
	f := billing.Filter{ListFilter: q.ListQuery.Filter(), PatientID: q.PatientID}
	var err error
	if f.From, err = ParseDate("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = ParseDate("to", q.To); err != nil {
		return f, err
	}
	return f, nil
}

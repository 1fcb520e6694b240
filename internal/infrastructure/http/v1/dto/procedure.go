package dto

import (
	"clinicledger/internal/domain/catalogs/procedure"
)

// CreateProcedureRequest creates a procedure. Pricing uses the flat tagged form:
// {"kind":"fixed","amount":180000} or {"kind":"variable","min":40000,"max":90000,"unit":"session"}.
type CreateProcedureRequest struct {
	Code    string                  `json:"code" binding:"required,max=32"`
	Name    string                  `json:"name" binding:"required,max=200"`
	Pricing procedure.PricingFields `json:"pricing"`
}

// ToInput converts the request to the catalog input.
func (r CreateProcedureRequest) ToInput() (procedure.Input, error) {
	pricing, err := r.Pricing.Pricing()
	if err != nil {
		return procedure.Input{}, err
	}
	return procedure.Input{Code: r.Code, Name: r.Name, Pricing: pricing}, nil
}

// UpdateProcedureRequest edits a procedure; a present pricing replaces the old one.
type UpdateProcedureRequest struct {
	Code    *string                  `json:"code" binding:"omitempty,min=1,max=32"`
	Name    *string                  `json:"name" binding:"omitempty,min=1,max=200"`
	Pricing *procedure.PricingFields `json:"pricing"`
}

// ToPatch converts the request to the catalog patch.
func (r UpdateProcedureRequest) ToPatch() (procedure.Patch, error) {
	patch := procedure.Patch{Code: r.Code, Name: r.Name}
	if r.Pricing != nil {
		pricing, err := r.Pricing.Pricing()
		if err != nil {
			return procedure.Patch{}, err
		}
		patch.Pricing = pricing
	}
	return patch, nil
}

// ProcedureListQuery filters the procedure list.
type ProcedureListQuery struct {
	ListQuery
	ActiveOnly bool `form:"activeOnly"`
}

// ProcedureFilter converts the query into a procedure filter.
func (q ProcedureListQuery) ProcedureFilter() procedure.Filter {
	return procedure.Filter{ListFilter: q.ListQuery.Filter(), ActiveOnly: q.ActiveOnly}
}

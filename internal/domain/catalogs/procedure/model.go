// Package procedure is the catalog of billable clinical procedures and their pricing.
package procedure

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain"
)

// PricingKind tags the pricing variant in storage and JSON.
type PricingKind string

const (
	PricingFixed    PricingKind = "fixed"
	PricingVariable PricingKind = "variable"
)

// Pricing is either FixedPrice or VariableRange.
type Pricing interface {
	Kind() PricingKind
	validate() error
}

// FixedPrice charges one amount. A nil Amount prices at zero.
type FixedPrice struct {
	Amount *types.MinorUnits
}

// Kind implements Pricing.
func (FixedPrice) Kind() PricingKind { return PricingFixed }

func (p FixedPrice) validate() error {
	if p.Amount != nil && p.Amount.IsNegative() {
		return apperror.NewValidation("pricing amount must not be negative").
			WithDetail("field", "pricing.amount")
	}
	return nil
}

// VariableRange is priced per case within an optional range; Unit describes what
// the price is quoted per (e.g. "canal").
type VariableRange struct {
	Min  *types.MinorUnits
	Max  *types.MinorUnits
	Unit *string
}

// Kind implements Pricing.
func (VariableRange) Kind() PricingKind { return PricingVariable }

func (p VariableRange) validate() error {
	if p.Min != nil && p.Min.IsNegative() {
		return apperror.NewValidation("pricing min must not be negative").
			WithDetail("field", "pricing.min")
	}
	if p.Max != nil && p.Max.IsNegative() {
		return apperror.NewValidation("pricing max must not be negative").
			WithDetail("field", "pricing.max")
	}
	if p.Min != nil && p.Max != nil && *p.Max < *p.Min {
		return apperror.NewValidation("pricing max must not be below min").
			WithDetail("field", "pricing.max")
	}
	return nil
}

// PricingFields is the flat form of Pricing used by storage rows and JSON bodies.
type PricingFields struct {
	Kind   PricingKind       `db:"pricing_kind" json:"kind"`
	Amount *types.MinorUnits `db:"price_amount" json:"amount,omitempty"`
	Min    *types.MinorUnits `db:"price_min" json:"min,omitempty"`
	Max    *types.MinorUnits `db:"price_max" json:"max,omitempty"`
	Unit   *string           `db:"price_unit" json:"unit,omitempty"`
}

// FlattenPricing converts a variant to its flat form.
func FlattenPricing(p Pricing) PricingFields {
	switch v := p.(type) {
	case FixedPrice:
		return PricingFields{Kind: PricingFixed, Amount: v.Amount}
	case VariableRange:
		return PricingFields{Kind: PricingVariable, Min: v.Min, Max: v.Max, Unit: v.Unit}
	}
	return PricingFields{Kind: PricingFixed}
}

// Pricing rebuilds the variant. Fields that do not belong to the kind are ignored.
func (f PricingFields) Pricing() (Pricing, error) {
	switch f.Kind {
	case PricingFixed, "":
		return FixedPrice{Amount: f.Amount}, nil
	case PricingVariable:
		return VariableRange{Min: f.Min, Max: f.Max, Unit: f.Unit}, nil
	}
	return nil, apperror.NewValidation(fmt.Sprintf("unknown pricing kind %q", f.Kind)).
		WithDetail("field", "pricing.kind")
}

// Procedure is a billable clinical procedure.
type Procedure struct {
	ID        id.ID
	Code      string
	Name      string
	Active    bool
	Pricing   Pricing
	CreatedAt time.Time
	UpdatedAt time.Time
}

type procedureJSON struct {
	ID        id.ID         `json:"id"`
	Code      string        `json:"code"`
	Name      string        `json:"name"`
	Active    bool          `json:"active"`
	Pricing   PricingFields `json:"pricing"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// MarshalJSON renders Pricing in its flat tagged form.
func (p *Procedure) MarshalJSON() ([]byte, error) {
	return json.Marshal(procedureJSON{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		Active:    p.Active,
		Pricing:   FlattenPricing(p.Pricing),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}

// NormalizeCode trims and upper-cases a procedure code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks code, name and pricing.
func (p *Procedure) Validate() error {
	if p.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.Pricing == nil {
		return apperror.NewValidation("pricing is required").WithDetail("field", "pricing")
	}
	return p.Pricing.validate()
}

func (p *Procedure) normalize() {
	p.Code = NormalizeCode(p.Code)
	p.Name = strings.TrimSpace(p.Name)
}

func (p *Procedure) auditState() map[string]any {
	f := FlattenPricing(p.Pricing)
	state := map[string]any{
		"code":        p.Code,
		"name":        p.Name,
		"active":      p.Active,
		"pricingKind": string(f.Kind),
	}
	if f.Amount != nil {
		state["priceAmount"] = int64(*f.Amount)
	}
	if f.Min != nil {
		state["priceMin"] = int64(*f.Min)
	}
	if f.Max != nil {
		state["priceMax"] = int64(*f.Max)
	}
	if f.Unit != nil {
		state["priceUnit"] = *f.Unit
	}
	return state
}

// Input creates a procedure.
type Input struct {
	Code    string
	Name    string
	Pricing Pricing
}

// Patch updates a procedure. Nil fields are left unchanged.
type Patch struct {
	Code    *string
	Name    *string
	Pricing Pricing
}

// Filter narrows procedure listings, ordered by code.
type Filter struct {
	domain.ListFilter
	ActiveOnly bool
}

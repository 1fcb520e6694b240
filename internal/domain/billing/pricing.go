package billing

import (
	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain/catalogs/procedure"
)

// ResolveUnitPrice picks the unit price of a line: the explicit price if given,
// otherwise the catalog price of the procedure.
func ResolveUnitPrice(p *procedure.Procedure, explicit *types.MinorUnits) (types.MinorUnits, error) {
	if explicit != nil {
		return *explicit, nil
	}

	switch pricing := p.Pricing.(type) {
	case procedure.VariableRange:
		if pricing.Min == nil {
			return 0, apperror.NewPriceRequired(p.Code)
		}
		return *pricing.Min, nil
	case procedure.FixedPrice:
		if pricing.Amount == nil {
			return 0, nil
		}
		return *pricing.Amount, nil
	}
	return 0, nil
}

// PriceLine resolves the unit price and computes the rounded subtotal.
func PriceLine(p *procedure.Procedure, lineNo int, in LineInput) (InvoiceLine, error) {
	unitPrice, err := ResolveUnitPrice(p, in.UnitPrice)
	if err != nil {
		return InvoiceLine{}, err
	}

	qty := in.Quantity
	if qty.IsZero() {
		qty = types.QuantityOne
	}

	subtotal, err := unitPrice.MulQuantity(qty)
	if err != nil {
		return InvoiceLine{}, apperror.NewValidation("line subtotal is out of range").
			WithDetail("field", "lines.quantity").
			WithDetail("line", lineNo)
	}

	return InvoiceLine{
		LineNo:        lineNo,
		ProcedureCode: p.Code,
		Quantity:      qty,
		Tooth:         in.Tooth,
		UnitPrice:     unitPrice,
		Subtotal:      subtotal,
	}, nil
}

// Total sums line subtotals.
func Total(lines []InvoiceLine) (types.MinorUnits, error) {
	subtotals := make([]types.MinorUnits, len(lines))
	for i, l := range lines {
		subtotals[i] = l.Subtotal
	}
	total, err := types.Sum(subtotals...)
	if err != nil {
		return 0, apperror.NewValidation("invoice total is out of range").
			WithDetail("field", "lines")
	}
	return total, nil
}

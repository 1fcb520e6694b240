package inventory

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/types"
)

// StockPolicy decides what happens when a movement would take stock below zero.
type StockPolicy string

const (
	// StockPolicyClamp stores zero and still records the full requested delta.
	StockPolicyClamp StockPolicy = "clamp"
	// StockPolicyReject fails the movement with INSUFFICIENT_STOCK.
	StockPolicyReject StockPolicy = "reject"
)

// ParseStockPolicy validates a configured policy name.
func ParseStockPolicy(s string) (StockPolicy, error) {
	switch StockPolicy(s) {
	case StockPolicyClamp, "":
		return StockPolicyClamp, nil
	case StockPolicyReject:
		return StockPolicyReject, nil
	}
	return "", fmt.Errorf("unknown stock policy %q", s)
}

// SignedDelta returns the change applied to stock for a movement of type t.
// PURCHASE and RETURN add, USE and WASTE subtract, ADJUSTMENT keeps the caller's sign.
func SignedDelta(t MovementType, quantity int64) int64 {
	abs := quantity
	if abs < 0 {
		abs = -abs
	}

	switch t {
	case MovementPurchase, MovementReturn:
		return abs
	case MovementUse, MovementWaste:
		return -abs
	default:
		if quantity < 0 {
			return -abs
		}
		return abs
	}
}

// WeightedAverage blends the current average cost of baseStock units with qty
// units bought at unitCost. Negative stock counts as zero.
func WeightedAverage(baseStock int64, avgCost types.MinorUnits, qty int64, unitCost types.MinorUnits) types.MinorUnits {
	if baseStock < 0 {
		baseStock = 0
	}
	if qty < 0 {
		qty = -qty
	}

	totalQty := decimal.NewFromInt(baseStock).Add(decimal.NewFromInt(qty))
	if !totalQty.IsPositive() {
		return unitCost
	}

	totalCost := decimal.NewFromInt(baseStock).Mul(avgCost.Decimal()).
		Add(decimal.NewFromInt(qty).Mul(unitCost.Decimal()))

	return types.MinorUnits(totalCost.Div(totalQty).Round(0).IntPart())
}

// Outcome is the new item state computed for one movement.
type Outcome struct {
	Delta    int64
	Stock    int64
	AvgCost  types.MinorUnits
	LastCost types.MinorUnits
	Clamped  bool
}

// Apply computes the effect of in on the current item state without mutating it.
func Apply(current *Item, in MovementInput, policy StockPolicy) (Outcome, error) {
	out := Outcome{
		Delta:    SignedDelta(in.Type, in.Quantity),
		AvgCost:  current.AvgCost,
		LastCost: current.LastCost,
	}

	if out.Delta > 0 && current.Stock > math.MaxInt64-out.Delta {
		return Outcome{}, apperror.NewValidation("movement would overflow stock").
			WithDetail("field", "quantity").
			WithDetail("stock", current.Stock)
	}

	out.Stock = current.Stock + out.Delta
	if out.Stock < 0 {
		if policy == StockPolicyReject {
			return Outcome{}, apperror.NewInsufficientStock(current.ID.String(), -out.Delta, current.Stock)
		}
		out.Stock = 0
		out.Clamped = true
	}

	if in.Type == MovementPurchase && in.UnitCost != nil {
		out.AvgCost = WeightedAverage(current.Stock, current.AvgCost, in.Quantity, *in.UnitCost)
		out.LastCost = *in.UnitCost
	}

	return out, nil
}

// Replay folds a chronological movement log the way the engine applies it:
// each step clamps at zero. rawSum is the unclamped total of recorded deltas.
func Replay(movements []*Movement) (stock, rawSum int64) {
	for _, m := range movements {
		rawSum += m.Quantity
		stock += m.Quantity
		if stock < 0 {
			stock = 0
		}
	}
	return stock, rawSum
}

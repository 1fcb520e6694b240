// Package inventory provides the ledger engine for consumable clinic supplies:
// items, the append-only movement log, and stock / weighted-average cost upkeep.
package inventory

import (
	"math"
	"strings"
	"time"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain"
)

// Item is a consumable tracked by the ledger.
// Stock, AvgCost and LastCost change only as a side effect of recording a movement.
type Item struct {
	ID       id.ID            `db:"id" json:"id"`
	Name     string           `db:"name" json:"name"`
	SKU      *string          `db:"sku" json:"sku,omitempty"`
	Category string           `db:"category" json:"category"`
	Unit     string           `db:"unit" json:"unit"`
	MinStock int64            `db:"min_stock" json:"minStock"`
	Stock    int64            `db:"stock" json:"stock"`
	AvgCost  types.MinorUnits `db:"avg_cost" json:"avgCost"`
	LastCost types.MinorUnits `db:"last_cost" json:"lastCost"`
	Active   bool             `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsLowStock reports whether the item is at or below its reorder threshold.
// Items without a threshold are never low.
func (i *Item) IsLowStock() bool {
	return i.MinStock > 0 && i.Stock <= i.MinStock
}

// Validate checks the descriptive attributes.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if i.MinStock < 0 {
		return apperror.NewValidation("minStock must not be negative").
			WithDetail("field", "minStock")
	}
	if i.Stock < 0 {
		return apperror.NewValidation("stock must not be negative").
			WithDetail("field", "stock")
	}
	return nil
}

// normalize trims text fields; an empty SKU is stored as NULL so the unique index
// only applies to real codes.
func (i *Item) normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Category = strings.TrimSpace(i.Category)
	i.Unit = strings.TrimSpace(i.Unit)
	if i.SKU != nil {
		sku := strings.TrimSpace(*i.SKU)
		if sku == "" {
			i.SKU = nil
		} else {
			i.SKU = &sku
		}
	}
}

func (i *Item) auditState() map[string]any {
	state := map[string]any{
		"name":     i.Name,
		"category": i.Category,
		"unit":     i.Unit,
		"minStock": i.MinStock,
		"active":   i.Active,
	}
	if i.SKU != nil {
		state["sku"] = *i.SKU
	}
	return state
}

// MovementType classifies a stock-changing event.
type MovementType string

const (
	MovementPurchase   MovementType = "PURCHASE"
	MovementUse        MovementType = "USE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementWaste      MovementType = "WASTE"
	MovementReturn     MovementType = "RETURN"
)

// MovementTypes lists every valid type.
var MovementTypes = []MovementType{
	MovementPurchase, MovementUse, MovementAdjustment, MovementWaste, MovementReturn,
}

// ParseMovementType accepts a type name in any letter case.
func ParseMovementType(s string) (MovementType, bool) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.IsValid()
}

// IsValid reports whether t is one of the known types.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementPurchase, MovementUse, MovementAdjustment, MovementWaste, MovementReturn:
		return true
	}
	return false
}

// Movement is an immutable ledger entry. Quantity is the signed delta requested,
// recorded in full even when the stock was clamped at zero.
type Movement struct {
	ID        id.ID             `db:"id" json:"id"`
	ItemID    id.ID             `db:"item_id" json:"itemId"`
	Type      MovementType      `db:"type" json:"type"`
	Quantity  int64             `db:"quantity" json:"quantity"`
	UnitCost  *types.MinorUnits `db:"unit_cost" json:"unitCost,omitempty"`
	Reference *string           `db:"reference" json:"reference,omitempty"`
	Note      *string           `db:"note" json:"note,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
}

// MovementInput is the typed request to record a movement.
type MovementInput struct {
	ItemID    id.ID
	Type      MovementType
	Quantity  int64
	UnitCost  *types.MinorUnits
	Reference *string
	Note      *string
}

// Validate rejects malformed input before any storage access.
func (in MovementInput) Validate() error {
	if id.IsNil(in.ItemID) {
		return apperror.NewValidation("itemId is required").
			WithDetail("field", "itemId")
	}
	if !in.Type.IsValid() {
		return apperror.NewValidation("unknown movement type").
			WithDetail("field", "type").
			WithDetail("value", string(in.Type))
	}
	if in.Quantity == 0 {
		return apperror.NewValidation("quantity must be non-zero").
			WithDetail("field", "quantity")
	}
	if in.Quantity == math.MinInt64 {
		return apperror.NewValidation("quantity is out of range").
			WithDetail("field", "quantity")
	}
	if in.UnitCost != nil {
		if in.Type != MovementPurchase {
			return apperror.NewValidation("unitCost is only allowed for PURCHASE movements").
				WithDetail("field", "unitCost").
				WithDetail("type", string(in.Type))
		}
		if in.UnitCost.IsNegative() {
			return apperror.NewValidation("unitCost must not be negative").
				WithDetail("field", "unitCost")
		}
	}
	return nil
}

// ItemInput creates an item, optionally with an opening balance.
type ItemInput struct {
	Name     string
	SKU      *string
	Category string
	Unit     string
	MinStock int64

	// OpeningStock, when positive, is recorded as the first movement: a PURCHASE
	// when OpeningCost is set, an ADJUSTMENT otherwise.
	OpeningStock int64
	OpeningCost  *types.MinorUnits
}

// ItemPatch updates descriptive attributes. Nil fields are left unchanged;
// an empty SKU clears it.
type ItemPatch struct {
	Name     *string
	SKU      *string
	Category *string
	Unit     *string
	MinStock *int64
}

func (p ItemPatch) applyTo(item *Item) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.SKU != nil {
		sku := *p.SKU
		item.SKU = &sku
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Unit != nil {
		item.Unit = *p.Unit
	}
	if p.MinStock != nil {
		item.MinStock = *p.MinStock
	}
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	domain.ListFilter
	Category     string
	ActiveOnly   bool
	LowStockOnly bool
}

// MovementFilter narrows movement history. Results are newest first.
type MovementFilter struct {
	domain.ListFilter
	ItemID *id.ID
	Type   *MovementType
	From   *time.Time
	To     *time.Time
}

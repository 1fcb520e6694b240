package dto

import (
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain/inventory"
)

// CreateItemRequest creates an inventory item.
type CreateItemRequest struct {
	Name         string            `json:"name" binding:"required,max=200"`
	SKU          *string           `json:"sku" binding:"omitempty,max=64"`
	Category     string            `json:"category" binding:"max=100"`
	Unit         string            `json:"unit" binding:"max=32"`
	MinStock     int64             `json:"minStock" binding:"min=0"`
	OpeningStock int64             `json:"openingStock" binding:"min=0"`
	OpeningCost  *types.MinorUnits `json:"openingCost" binding:"omitempty,min=0"`
}

// ToInput converts the request to the engine input.
func (r CreateItemRequest) ToInput() inventory.ItemInput {
	return inventory.ItemInput{
		Name:         r.Name,
		SKU:          r.SKU,
		Category:     r.Category,
		Unit:         r.Unit,
		MinStock:     r.MinStock,
		OpeningStock: r.OpeningStock,
		OpeningCost:  r.OpeningCost,
	}
}

// UpdateItemRequest edits descriptive attributes. Stock and costs are not editable.
type UpdateItemRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=200"`
	SKU      *string `json:"sku" binding:"omitempty,max=64"`
	Category *string `json:"category" binding:"omitempty,max=100"`
	Unit     *string `json:"unit" binding:"omitempty,max=32"`
	MinStock *int64  `json:"minStock" binding:"omitempty,min=0"`
}

// ToPatch converts the request to the engine patch.
func (r UpdateItemRequest) ToPatch() inventory.ItemPatch {
	return inventory.ItemPatch{
		Name:     r.Name,
		SKU:      r.SKU,
		Category: r.Category,
		Unit:     r.Unit,
		MinStock: r.MinStock,
	}
}

// ItemListQuery filters the item list.
type ItemListQuery struct {
	ListQuery
	Category   string `form:"category"`
	ActiveOnly bool   `form:"activeOnly"`
	LowStock   bool   `form:"lowStock"`
}

// ItemFilter converts the query into an item filter.
func (q ItemListQuery) ItemFilter() inventory.ItemFilter {
	return inventory.ItemFilter{
		ListFilter:   q.ListQuery.Filter(),
		Category:     q.Category,
		ActiveOnly:   q.ActiveOnly,
		LowStockOnly: q.LowStock,
	}
}

// RecordMovementRequest records a stock movement. Quantity, type and cost rules
// are checked by the ledger so every caller gets the same errors.
type RecordMovementRequest struct {
	ItemID    string            `json:"itemId" binding:"required"`
	Type      string            `json:"type" binding:"required"`
	Quantity  int64             `json:"quantity"`
	UnitCost  *types.MinorUnits `json:"unitCost"`
	Reference *string           `json:"reference" binding:"omitempty,max=200"`
	Note      *string           `json:"note" binding:"omitempty,max=1000"`
}

// ToInput converts the request to the engine input.
func (r RecordMovementRequest) ToInput() (inventory.MovementInput, error) {
	itemID, err := ParseID("itemId", r.ItemID)
	if err != nil {
		return inventory.MovementInput{}, err
	}
	movementType, _ := inventory.ParseMovementType(r.Type)
	return inventory.MovementInput{
		ItemID:    itemID,
		Type:      movementType,
		Quantity:  r.Quantity,
		UnitCost:  r.UnitCost,
		Reference: r.Reference,
		Note:      r.Note,
	}, nil
}

// MovementResponse is the result of recording a movement.
type MovementResponse struct {
	Movement *inventory.Movement `json:"movement"`
	Item     *inventory.Item     `json:"item"`
}

// MovementListQuery filters movement history.
type MovementListQuery struct {
	ListQuery
	ItemID string `form:"itemId"`
	Type   string `form:"type"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// MovementFilter converts the query into a movement filter.
func (q MovementListQuery) MovementFilter() (inventory.MovementFilter, error) {
	f := inventory.MovementFilter{ListFilter: q.ListQuery.Filter()}
	if q.ItemID != "" {
		itemID, err := ParseID("itemId", q.ItemID)
		if err != nil {
			return f, err
		}
		f.ItemID = &itemID
	}
	if q.Type != "" {
		t, _ := inventory.ParseMovementType(q.Type)
		f.Type = &t
	}
	var err error
	if f.From, err = ParseTime("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = ParseTime("to", q.To); err != nil {
		return f, err
	}
	return f, nil
}

// LowStockQuery limits the low-stock listing.
type LowStockQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

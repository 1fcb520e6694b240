package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/domain/inventory"
)

type pricedRow struct {
	ID id.ID `db:"id"`
	pricing
	Note      string `db:"-"`
	Untagged  string
	CreatedAt time.Time `db:"created_at"`
}

type pricing struct {
	Kind   string `db:"pricing_kind"`
	Amount *int64 `db:"price_amount"`
}

func TestExtractDBColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "pricing_kind", "price_amount", "created_at"},
		ExtractDBColumns[pricedRow]())

	assert.Equal(t, []string{
		"id", "name", "sku", "category", "unit", "min_stock",
		"stock", "avg_cost", "last_cost", "active", "created_at", "updated_at",
	}, ExtractDBColumns[inventory.Item]())

	// Lines are loaded separately.
	assert.NotContains(t, ExtractDBColumns[billing.Invoice](), "lines")
	assert.Equal(t, ExtractDBColumns[pricedRow](), ExtractDBColumns[*pricedRow]())
}

func TestStructToMap(t *testing.T) {
	amount := int64(1500)
	row := pricedRow{
		ID:        id.New(),
		pricing:   pricing{Kind: "fixed", Amount: &amount},
		Note:      "ignored",
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	m := StructToMap(&row)

	assert.Len(t, m, 4)
	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, "fixed", m["pricing_kind"])
	assert.Equal(t, &amount, m["price_amount"])
	assert.Equal(t, row.CreatedAt, m["created_at"])
	assert.NotContains(t, m, "Note")
}

func TestStructToMapNonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*pricedRow)(nil)))
}

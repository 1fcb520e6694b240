package inventory

import (
	"context"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
)

// ItemRepository persists items. Implementations read and write through the
// transaction carried by ctx when there is one.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error

	// Update writes descriptive attributes, minStock and the active flag.
	Update(ctx context.Context, item *Item) error

	// UpdateStock writes stock, avgCost, lastCost and updatedAt.
	UpdateStock(ctx context.Context, item *Item) error

	GetByID(ctx context.Context, itemID id.ID) (*Item, error)

	// GetForUpdate reads the item and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, itemID id.ID) (*Item, error)

	List(ctx context.Context, filter ItemFilter) (domain.ListResult[*Item], error)
}

// MovementRepository persists the append-only movement log.
type MovementRepository interface {
	Create(ctx context.Context, movement *Movement) error

	// List returns movements newest first.
	List(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error)

	// ListByItem returns every movement of an item in the order they were applied.
	ListByItem(ctx context.Context, itemID id.ID) ([]*Movement, error)
}

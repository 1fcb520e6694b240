// Package inventory_repo provides PostgreSQL implementations of the inventory
// ledger repositories.
package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/inventory"
	"clinicledger/internal/infrastructure/storage/postgres"
)

const itemsTable = "inventory_items"

var itemColumns = postgres.ExtractDBColumns[inventory.Item]()

var itemUniqueFields = postgres.UniqueField{
	"inventory_items_sku_key": "sku",
}

// ItemRepo implements inventory.ItemRepository.
type ItemRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ inventory.ItemRepository = (*ItemRepo)(nil)

// NewItemRepo creates a new item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// Create inserts a new item.
func (r *ItemRepo) Create(ctx context.Context, item *inventory.Item) error {
	sql, args, err := r.builder.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			item.ID, item.Name, item.SKU, item.Category, item.Unit, item.MinStock,
			item.Stock, item.AvgCost, item.LastCost, item.Active, item.CreatedAt, item.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "insert item", "item", skuOrID(item), itemUniqueFields)
	}
	return nil
}

// Update writes descriptive attributes, minStock and the active flag.
func (r *ItemRepo) Update(ctx context.Context, item *inventory.Item) error {
	sql, args, err := r.builder.Update(itemsTable).
		Set("name", item.Name).
		Set("sku", item.SKU).
		Set("category", item.Category).
		Set("unit", item.Unit).
		Set("min_stock", item.MinStock).
		Set("active", item.Active).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.exec(ctx, "update item", item, sql, args)
}

// UpdateStock writes the ledger-maintained fields.
func (r *ItemRepo) UpdateStock(ctx context.Context, item *inventory.Item) error {
	sql, args, err := r.builder.Update(itemsTable).
		Set("stock", item.Stock).
		Set("avg_cost", item.AvgCost).
		Set("last_cost", item.LastCost).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{"id": item.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.exec(ctx, "update item stock", item, sql, args)
}

func (r *ItemRepo) exec(ctx context.Context, op string, item *inventory.Item, sql string, args []any) error {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, op, "item", skuOrID(item), itemUniqueFields)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, op, "item", item.ID, nil)
	}
	return nil
}

// GetByID retrieves an item.
func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*inventory.Item, error) {
	return r.get(ctx, itemID, false)
}

// GetForUpdate retrieves an item and locks its row for the rest of the transaction.
func (r *ItemRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*inventory.Item, error) {
	return r.get(ctx, itemID, true)
}

func (r *ItemRepo) get(ctx context.Context, itemID id.ID, lock bool) (*inventory.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item inventory.Item
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get item", "item", itemID, nil)
	}
	return &item, nil
}

// List returns items ordered by name.
func (r *ItemRepo) List(ctx context.Context, filter inventory.ItemFilter) (domain.ListResult[*inventory.Item], error) {
	q := r.builder.Select(itemColumns...).From(itemsTable)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"sku": pattern},
		})
	}
	if filter.Category != "" {
		q = q.Where("lower(category) = lower(?)", filter.Category)
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if filter.LowStockOnly {
		q = q.Where("min_stock > 0 AND stock <= min_stock")
	}

	return postgres.SelectPage[*inventory.Item](ctx, r.txManager.GetQuerier(ctx), q,
		[]string{"name", "id"}, filter.ListFilter)
}

func skuOrID(item *inventory.Item) any {
	if item.SKU != nil {
		return *item.SKU
	}
	return item.ID
}

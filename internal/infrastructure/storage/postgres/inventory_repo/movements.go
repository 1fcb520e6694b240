package inventory_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/inventory"
	"clinicledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "inventory_movements"

var movementColumns = postgres.ExtractDBColumns[inventory.Movement]()

// MovementRepo implements inventory.MovementRepository.
// Rows are insert-only; nothing in this package updates or deletes them.
type MovementRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ inventory.MovementRepository = (*MovementRepo)(nil)

// NewMovementRepo creates a new movement repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

// Create appends a movement.
func (r *MovementRepo) Create(ctx context.Context, m *inventory.Movement) error {
	sql, args, err := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(m.ID, m.ItemID, m.Type, m.Quantity, m.UnitCost, m.Reference, m.Note, m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "insert movement", "movement", m.ID, nil)
	}
	return nil
}

// List returns movements newest first. From is inclusive, To exclusive.
func (r *MovementRepo) List(ctx context.Context, filter inventory.MovementFilter) (domain.ListResult[*inventory.Movement], error) {
	q := r.builder.Select(movementColumns...).From(movementsTable)

	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}

	return postgres.SelectPage[*inventory.Movement](ctx, r.txManager.GetQuerier(ctx), q,
		[]string{"created_at DESC", "id DESC"}, filter.ListFilter)
}

// ListByItem returns the full history of an item in applied order.
// UUIDv7 ids break ties between movements sharing a timestamp.
func (r *MovementRepo) ListByItem(ctx context.Context, itemID id.ID) ([]*inventory.Movement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*inventory.Movement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements of item: %w", err)
	}
	return out, nil
}

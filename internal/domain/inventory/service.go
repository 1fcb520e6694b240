package inventory

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/tx"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/audit"
	"clinicledger/internal/domain/events"
	"clinicledger/pkg/logger"
)

var tracer = otel.Tracer("clinicledger/inventory")

// OpeningBalanceReference marks the movement recorded when an item is created with stock.
const OpeningBalanceReference = "opening-balance"

// Service is the ledger engine.
type Service struct {
	items     ItemRepository
	movements MovementRepository
	txManager tx.Manager
	publisher events.Publisher
	auditor   audit.Recorder
	policy    StockPolicy
	now       func() time.Time
	hooks     *domain.HookRegistry[*Item]
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithStockPolicy sets the negative-stock policy (default clamp).
func WithStockPolicy(p StockPolicy) Option { return func(s *Service) { s.policy = p } }

// WithPublisher sets the outbox publisher.
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithAuditor sets the catalog audit recorder.
func WithAuditor(a audit.Recorder) Option { return func(s *Service) { s.auditor = a } }

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates the ledger engine.
func NewService(items ItemRepository, movements MovementRepository, txManager tx.Manager, opts ...Option) *Service {
	s := &Service{
		items:     items,
		movements: movements,
		txManager: txManager,
		publisher: events.Discard,
		policy:    StockPolicyClamp,
		now:       time.Now,
		hooks:     domain.NewHookRegistry[*Item](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor != nil {
		s.hooks.OnAfterCreate(s.auditCreate)
	}
	return s
}

// Hooks returns the hook registry for item lifecycle callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Item] {
	return s.hooks
}

// Policy returns the configured negative-stock policy.
func (s *Service) Policy() StockPolicy {
	return s.policy
}

// RecordMovement appends a movement and recomputes the item's stock and cost in
// one transaction. The item row stays locked from read to write, so concurrent
// movements on the same item are applied one after another.
func (s *Service) RecordMovement(ctx context.Context, in MovementInput) (*Movement, *Item, error) {
	ctx, span := tracer.Start(ctx, "inventory.RecordMovement",
		trace.WithAttributes(
			attribute.String("item.id", in.ItemID.String()),
			attribute.String("movement.type", string(in.Type)),
		))
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		movement *Movement
		item     *Item
		clamped  bool
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.items.GetForUpdate(ctx, in.ItemID)
		if err != nil {
			return err
		}

		movement, item, clamped, err = s.apply(ctx, current, in)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if clamped {
		logger.Warn(ctx, "stock clamped at zero",
			"item_id", item.ID,
			"requested_delta", movement.Quantity)
	}
	logger.Info(ctx, "inventory movement recorded",
		"movement_id", movement.ID,
		"item_id", item.ID,
		"type", movement.Type,
		"delta", movement.Quantity,
		"stock", item.Stock,
		"avg_cost", item.AvgCost)

	return movement, item, nil
}

// apply writes one movement against a locked item. Must run inside a transaction.
func (s *Service) apply(ctx context.Context, current *Item, in MovementInput) (*Movement, *Item, bool, error) {
	outcome, err := Apply(current, in, s.policy)
	if err != nil {
		return nil, nil, false, err
	}

	now := s.now().UTC()
	movement := &Movement{
		ID:        id.New(),
		ItemID:    current.ID,
		Type:      in.Type,
		Quantity:  outcome.Delta,
		UnitCost:  in.UnitCost,
		Reference: in.Reference,
		Note:      in.Note,
		CreatedAt: now,
	}
	if err := s.movements.Create(ctx, movement); err != nil {
		return nil, nil, false, fmt.Errorf("create movement: %w", err)
	}

	updated := *current
	updated.Stock = outcome.Stock
	updated.AvgCost = outcome.AvgCost
	updated.LastCost = outcome.LastCost
	updated.UpdatedAt = now
	if err := s.items.UpdateStock(ctx, &updated); err != nil {
		return nil, nil, false, fmt.Errorf("update item stock: %w", err)
	}

	if err := s.publishMovement(ctx, current, &updated, movement); err != nil {
		return nil, nil, false, err
	}

	return movement, &updated, outcome.Clamped, nil
}

func (s *Service) publishMovement(ctx context.Context, before, after *Item, m *Movement) error {
	err := s.publisher.Publish(ctx, events.Event{
		AggregateType: events.AggregateInventoryItem,
		AggregateID:   after.ID,
		EventType:     events.MovementRecorded,
		Payload: map[string]any{
			"movementId": m.ID,
			"itemId":     after.ID,
			"type":       m.Type,
			"quantity":   m.Quantity,
			"stock":      after.Stock,
			"avgCost":    after.AvgCost,
			"reference":  m.Reference,
		},
	})
	if err != nil {
		return fmt.Errorf("publish movement event: %w", err)
	}

	crossed := after.Active && after.IsLowStock() && !before.IsLowStock()
	if !crossed {
		return nil
	}
	err = s.publisher.Publish(ctx, events.Event{
		AggregateType: events.AggregateInventoryItem,
		AggregateID:   after.ID,
		EventType:     events.StockBelowMinimum,
		Payload: map[string]any{
			"itemId":   after.ID,
			"name":     after.Name,
			"stock":    after.Stock,
			"minStock": after.MinStock,
		},
	})
	if err != nil {
		return fmt.Errorf("publish low stock event: %w", err)
	}
	return nil
}

// CreateItem registers a new item. A positive opening stock is recorded as the
// item's first movement in the same transaction.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	now := s.now().UTC()
	item := &Item{
		ID:        id.New(),
		Name:      in.Name,
		SKU:       in.SKU,
		Category:  in.Category,
		Unit:      in.Unit,
		MinStock:  in.MinStock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if in.OpeningStock < 0 {
		return nil, apperror.NewValidation("openingStock must not be negative").
			WithDetail("field", "openingStock")
	}
	if in.OpeningCost != nil && in.OpeningCost.IsNegative() {
		return nil, apperror.NewValidation("openingCost must not be negative").
			WithDetail("field", "openingCost")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, domain.BeforeCreate, item); err != nil {
			return err
		}
		if err := s.items.Create(ctx, item); err != nil {
			return err
		}
		if err := s.hooks.Run(ctx, domain.AfterCreate, item); err != nil {
			return err
		}
		if in.OpeningStock == 0 {
			return nil
		}

		opening := MovementInput{
			ItemID:    item.ID,
			Type:      MovementAdjustment,
			Quantity:  in.OpeningStock,
			Reference: strPtr(OpeningBalanceReference),
		}
		if in.OpeningCost != nil {
			opening.Type = MovementPurchase
			opening.UnitCost = in.OpeningCost
		}
		_, updated, _, err := s.apply(ctx, item, opening)
		if err != nil {
			return err
		}
		*item = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory item created",
		"item_id", item.ID,
		"name", item.Name,
		"opening_stock", in.OpeningStock)

	return item, nil
}

// UpdateItem changes descriptive attributes. Stock and cost are untouched.
func (s *Service) UpdateItem(ctx context.Context, itemID id.ID, patch ItemPatch) (*Item, error) {
	var item *Item
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		before := current.auditState()

		updated := *current
		patch.applyTo(&updated)
		updated.normalize()
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, &updated); err != nil {
			return err
		}
		updated.UpdatedAt = s.now().UTC()
		if err := s.items.Update(ctx, &updated); err != nil {
			return err
		}
		if err := s.logChange(ctx, updated.ID, audit.ActionUpdate, audit.Diff(before, updated.auditState())); err != nil {
			return err
		}
		item = &updated
		return s.hooks.Run(ctx, domain.AfterUpdate, item)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory item updated", "item_id", item.ID)
	return item, nil
}

// SetActive soft-activates or deactivates an item. Items are never deleted
// because movements reference them.
func (s *Service) SetActive(ctx context.Context, itemID id.ID, active bool) (*Item, error) {
	var item *Item
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		item = current
		if current.Active == active {
			return nil
		}

		current.Active = active
		current.UpdatedAt = s.now().UTC()
		if err := s.items.Update(ctx, current); err != nil {
			return err
		}

		action := audit.ActionDeactivate
		if active {
			action = audit.ActionActivate
		}
		return s.logChange(ctx, current.ID, action, map[string]any{
			"active": map[string]any{"old": !active, "new": active},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory item activation changed", "item_id", itemID, "active", active)
	return item, nil
}

// GetItem returns an item by ID.
func (s *Service) GetItem(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.items.GetByID(ctx, itemID)
}

// ListItems returns items matching filter, ordered by name.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) (domain.ListResult[*Item], error) {
	filter.Normalize()
	return s.items.List(ctx, filter)
}

// ListLowStock returns active items at or below their reorder threshold.
func (s *Service) ListLowStock(ctx context.Context, limit int) ([]*Item, error) {
	filter := ItemFilter{
		ListFilter:   domain.ListFilter{Limit: limit},
		ActiveOnly:   true,
		LowStockOnly: true,
	}
	filter.Normalize()
	res, err := s.items.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// ListMovements returns movement history, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error) {
	filter.Normalize()
	if filter.Type != nil && !filter.Type.IsValid() {
		return domain.ListResult[*Movement]{}, apperror.NewValidation("unknown movement type").
			WithDetail("field", "type")
	}
	return s.movements.List(ctx, filter)
}

func (s *Service) auditCreate(ctx context.Context, item *Item) error {
	return s.logChange(ctx, item.ID, audit.ActionCreate, audit.Diff(nil, item.auditState()))
}

func (s *Service) logChange(ctx context.Context, itemID id.ID, action audit.Action, changes map[string]any) error {
	if s.auditor == nil || len(changes) == 0 {
		return nil
	}
	if err := s.auditor.LogChange(ctx, audit.EntityInventoryItem, itemID, action, changes); err != nil {
		return fmt.Errorf("audit item change: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

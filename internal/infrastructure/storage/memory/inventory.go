package memory

import (
	"context"
	"sort"
	"strings"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/domain"
	"clinicledger/internal/domain/inventory"
)

// ItemRepo implements inventory.ItemRepository.
type ItemRepo struct{ s *Store }

// MovementRepo implements inventory.MovementRepository.
type MovementRepo struct{ s *Store }

// Items returns the item repository.
func (s *Store) Items() *ItemRepo { return &ItemRepo{s: s} }

// Movements returns the movement repository.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

func skuTaken(st *state, sku *string, except id.ID) bool {
	if sku == nil {
		return false
	}
	for _, it := range st.items {
		if it.ID != except && it.SKU != nil && *it.SKU == *sku {
			return true
		}
	}
	return false
}

func (r *ItemRepo) Create(ctx context.Context, item *inventory.Item) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.items[item.ID]; ok {
			return apperror.NewDuplicate("inventory_item", "id", item.ID.String())
		}
		if skuTaken(st, item.SKU, item.ID) {
			return apperror.NewDuplicate("inventory_item", "sku", *item.SKU)
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (r *ItemRepo) Update(ctx context.Context, item *inventory.Item) error {
	return r.s.do(ctx, func(st *state) error {
		cur, ok := st.items[item.ID]
		if !ok {
			return apperror.NewNotFound("inventory_item", item.ID)
		}
		if skuTaken(st, item.SKU, item.ID) {
			return apperror.NewDuplicate("inventory_item", "sku", *item.SKU)
		}
		cur.Name = item.Name
		cur.SKU = item.SKU
		cur.Category = item.Category
		cur.Unit = item.Unit
		cur.MinStock = item.MinStock
		cur.Active = item.Active
		cur.UpdatedAt = item.UpdatedAt
		st.items[item.ID] = cur
		return nil
	})
}

func (r *ItemRepo) UpdateStock(ctx context.Context, item *inventory.Item) error {
	return r.s.do(ctx, func(st *state) error {
		cur, ok := st.items[item.ID]
		if !ok {
			return apperror.NewNotFound("inventory_item", item.ID)
		}
		cur.Stock = item.Stock
		cur.AvgCost = item.AvgCost
		cur.LastCost = item.LastCost
		cur.UpdatedAt = item.UpdatedAt
		st.items[item.ID] = cur
		return nil
	})
}

func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*inventory.Item, error) {
	var out *inventory.Item
	err := r.s.do(ctx, func(st *state) error {
		it, ok := st.items[itemID]
		if !ok {
			return apperror.NewNotFound("inventory_item", itemID)
		}
		out = &it
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID: the store mutex already serializes transactions.
func (r *ItemRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*inventory.Item, error) {
	return r.GetByID(ctx, itemID)
}

func (r *ItemRepo) List(ctx context.Context, filter inventory.ItemFilter) (domain.ListResult[*inventory.Item], error) {
	var res domain.ListResult[*inventory.Item]
	err := r.s.do(ctx, func(st *state) error {
		search := strings.ToLower(strings.TrimSpace(filter.Search))
		matched := make([]*inventory.Item, 0)
		for _, it := range st.items {
			if filter.Category != "" && !strings.EqualFold(it.Category, filter.Category) {
				continue
			}
			if filter.ActiveOnly && !it.Active {
				continue
			}
			if filter.LowStockOnly && !it.IsLowStock() {
				continue
			}
			if search != "" && !containsFold(it.Name, search) && (it.SKU == nil || !containsFold(*it.SKU, search)) {
				continue
			}
			it := it
			matched = append(matched, &it)
		}
		sort.Slice(matched, func(i, j int) bool {
			if matched[i].Name != matched[j].Name {
				return matched[i].Name < matched[j].Name
			}
			return matched[i].ID.String() < matched[j].ID.String()
		})
		res = domain.Paginate(matched, filter.ListFilter)
		return nil
	})
	return res, err
}

func (r *MovementRepo) Create(ctx context.Context, m *inventory.Movement) error {
	return r.s.do(ctx, func(st *state) error {
		if _, ok := st.items[m.ItemID]; !ok {
			return apperror.NewConflict("movement references unknown item").
				WithDetail("item_id", m.ItemID)
		}
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *MovementRepo) List(ctx context.Context, filter inventory.MovementFilter) (domain.ListResult[*inventory.Movement], error) {
	var res domain.ListResult[*inventory.Movement]
	err := r.s.do(ctx, func(st *state) error {
		matched := make([]*inventory.Movement, 0)
		// Newest first: walk the log backwards, then stable-sort by time.
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if filter.ItemID != nil && m.ItemID != *filter.ItemID {
				continue
			}
			if filter.Type != nil && m.Type != *filter.Type {
				continue
			}
			if filter.From != nil && m.CreatedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && !m.CreatedAt.Before(*filter.To) {
				continue
			}
			matched = append(matched, &m)
		}
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
		res = domain.Paginate(matched, filter.ListFilter)
		return nil
	})
	return res, err
}

func (r *MovementRepo) ListByItem(ctx context.Context, itemID id.ID) ([]*inventory.Movement, error) {
	var out []*inventory.Movement
	err := r.s.do(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.ItemID == itemID {
				m := m
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}

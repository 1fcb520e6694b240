package inventory

import (
	"context"

	"clinicledger/internal/core/id"
	"clinicledger/internal/core/tx"
	"clinicledger/internal/domain"
	"clinicledger/pkg/logger"
)

// ReconcileReport compares an item's stored stock with a replay of its movements.
// RawSum differs from ReplayedStock whenever a movement was clamped at zero.
type ReconcileReport struct {
	ItemID        id.ID `json:"itemId"`
	RecordedStock int64 `json:"recordedStock"`
	ReplayedStock int64 `json:"replayedStock"`
	RawSum        int64 `json:"rawSum"`
	Movements     int   `json:"movements"`
	Diverged      bool  `json:"diverged"`
}

// Reconcile replays the movement log of one item. It never writes.
func (s *Service) Reconcile(ctx context.Context, itemID id.ID) (*ReconcileReport, error) {
	var report *ReconcileReport
	err := s.readOnly(ctx, func(ctx context.Context) error {
		item, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		movements, err := s.movements.ListByItem(ctx, itemID)
		if err != nil {
			return err
		}

		replayed, raw := Replay(movements)
		report = &ReconcileReport{
			ItemID:        item.ID,
			RecordedStock: item.Stock,
			ReplayedStock: replayed,
			RawSum:        raw,
			Movements:     len(movements),
			Diverged:      replayed != item.Stock,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ReconcileAll reconciles every item, page by page, and returns the diverged ones.
func (s *Service) ReconcileAll(ctx context.Context) ([]*ReconcileReport, int, error) {
	var (
		diverged []*ReconcileReport
		checked  int
	)
	filter := ItemFilter{ListFilter: domain.ListFilter{Limit: domain.MaxLimit}}
	for {
		page, err := s.items.List(ctx, filter)
		if err != nil {
			return nil, checked, err
		}
		for _, item := range page.Items {
			report, err := s.Reconcile(ctx, item.ID)
			if err != nil {
				return nil, checked, err
			}
			checked++
			if report.Diverged {
				logger.Warn(ctx, "stock diverges from movement log",
					"item_id", report.ItemID,
					"recorded", report.RecordedStock,
					"replayed", report.ReplayedStock)
				diverged = append(diverged, report)
			}
		}
		filter.Offset += len(page.Items)
		if len(page.Items) == 0 || int64(filter.Offset) >= page.TotalCount {
			break
		}
	}
	return diverged, checked, nil
}

func (s *Service) readOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return s.txManager.RunInTransaction(ctx, fn)
}

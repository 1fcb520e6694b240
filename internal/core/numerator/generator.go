// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Generator hands out sequential document numbers.
//
// GetNextNumber must run on the caller's transaction (taken from ctx): the counter
// increment commits or rolls back together with the document that consumes it, so
// issued numbers have no gaps and no duplicates.
type Generator interface {
	// GetNextNumber atomically increments the counter for cfg.Key(period) and
	// returns the formatted number, e.g. FAC-2025-000042.
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)

	// SetNextNumber overwrites the counter value (maintenance only).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// Package numerator provides the PostgreSQL implementation of folio numbering.
// It implements core/numerator.Generator over the counters table.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"clinicledger/internal/core/apperror"
	corenumerator "clinicledger/internal/core/numerator"
	"clinicledger/internal/infrastructure/storage/postgres"
)

// Querier is the subset of postgres.Querier the counters need.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Service issues numbers with a single UPSERT per call. The row lock taken by
// the upsert is held until the caller's transaction ends, so concurrent
// invoices serialize on the counter and a rollback returns the number.
type Service struct {
	// querier returns the querier for ctx and whether a transaction is open.
	querier func(ctx context.Context) (Querier, bool)
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator bound to the transaction manager.
func New(txManager *postgres.TxManager) *Service {
	return &Service{
		querier: func(ctx context.Context) (Querier, bool) {
			return txManager.GetQuerier(ctx), txManager.GetTx(ctx) != nil
		},
	}
}

// GetNextNumber increments the counter of cfg.Key(period) and formats the result.
// It must run inside a transaction.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	q, inTx := s.querier(ctx)
	if !inTx {
		return "", fmt.Errorf("numerator requires transaction context")
	}

	key := cfg.Key(period)
	var num int64
	err := q.QueryRow(ctx, `
		INSERT INTO counters (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", key, err)
	}

	return cfg.Format(period, num), nil
}

// SetNextNumber overwrites the counter; the next issued number is value+1.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	if value < 0 {
		return apperror.NewValidation("counter value must not be negative").
			WithDetail("field", "value")
	}
	q, _ := s.querier(ctx)

	key := cfg.Key(period)
	_, err := q.Exec(ctx, `
		INSERT INTO counters (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set counter %s: %w", key, err)
	}
	return nil
}

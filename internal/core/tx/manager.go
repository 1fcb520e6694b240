// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the Postgres and in-memory
// implementations live in infrastructure/storage.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically.
//
// The active transaction travels in the context passed to fn: repositories called
// with that context read and write through it. Nested calls reuse the existing
// transaction. Implementations may re-run fn when the storage reports a transient
// conflict, so fn must not have side effects outside the transaction.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction (consistent snapshot for
	// multi-query reads such as reconciliation).
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Package memory is an in-process storage driver. It implements every repository,
// the transaction manager, folio numbering, the outbox, the audit log and the
// idempotency store over plain maps. Transactions are serialized by a single
// mutex and rolled back by restoring a snapshot, so concurrent callers observe
// the same linearizable behaviour as row locks in Postgres.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"clinicledger/internal/core/apperror"
	"clinicledger/internal/core/id"
	"clinicledger/internal/core/idempotency"
	"clinicledger/internal/core/numerator"
	"clinicledger/internal/core/tx"
	"clinicledger/internal/domain/audit"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/events"
	"clinicledger/internal/domain/inventory"
)

type txKey struct{}

// state is everything a transaction may change.
type state struct {
	items      map[id.ID]inventory.Item
	movements  []inventory.Movement
	procedures map[id.ID]procedure.Procedure
	invoices   map[id.ID]billing.Invoice
	lines      map[id.ID][]billing.InvoiceLine
	counters   map[string]int64
	outbox     []OutboxEntry
	audit      []audit.Entry
	idem       map[string]idemRecord
}

func newState() state {
	return state{
		items:      make(map[id.ID]inventory.Item),
		procedures: make(map[id.ID]procedure.Procedure),
		invoices:   make(map[id.ID]billing.Invoice),
		lines:      make(map[id.ID][]billing.InvoiceLine),
		counters:   make(map[string]int64),
		idem:       make(map[string]idemRecord),
	}
}

// clone copies maps; slices are append-only or replaced wholesale, so sharing
// their backing arrays is safe once the length is restored.
func (st state) clone() state {
	return state{
		items:      maps.Clone(st.items),
		movements:  st.movements,
		procedures: maps.Clone(st.procedures),
		invoices:   maps.Clone(st.invoices),
		lines:      maps.Clone(st.lines),
		counters:   maps.Clone(st.counters),
		outbox:     st.outbox,
		audit:      st.audit,
		idem:       maps.Clone(st.idem),
	}
}

// Store is the in-memory database.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
	ttl time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIdempotencyTTL sets how long idempotency keys are kept (default 24h).
func WithIdempotencyTTL(ttl time.Duration) Option { return func(s *Store) { s.ttl = ttl } }

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		st:  newState(),
		now: time.Now,
		ttl: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return apperror.NewPersistence(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
	}()
	err := fn(context.WithValue(ctx, txKey{}, s))
	if err != nil {
		s.st = snapshot
		if _, ok := apperror.AsAppError(err); ok {
			return err
		}
		return apperror.NewPersistence(err)
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// do runs fn against the state, locking unless ctx already holds the transaction.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(&s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

var (
	_ tx.ReadOnlyManager           = (*Store)(nil)
	_ numerator.Generator          = (*Store)(nil)
	_ events.Publisher             = (*Store)(nil)
	_ audit.Recorder               = (*Store)(nil)
	_ audit.Reader                 = (*Store)(nil)
	_ idempotency.Store            = (*Store)(nil)
	_ inventory.ItemRepository     = (*ItemRepo)(nil)
	_ inventory.MovementRepository = (*MovementRepo)(nil)
	_ procedure.Repository         = (*ProcedureRepo)(nil)
	_ billing.Repository           = (*InvoiceRepo)(nil)
)

// Package app wires storage drivers and engine services from configuration.
// Every binary and the HTTP tests build their object graph through it.
package app

import (
	"context"
	"fmt"

	"clinicledger/internal/config"
	"clinicledger/internal/core/idempotency"
	"clinicledger/internal/core/numerator"
	"clinicledger/internal/core/tx"
	"clinicledger/internal/domain/audit"
	"clinicledger/internal/domain/billing"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/events"
	"clinicledger/internal/domain/inventory"
	infranumerator "clinicledger/internal/infrastructure/numerator"
	"clinicledger/internal/infrastructure/storage/memory"
	"clinicledger/internal/infrastructure/storage/postgres"
	"clinicledger/internal/infrastructure/storage/postgres/billing_repo"
	"clinicledger/internal/infrastructure/storage/postgres/catalog_repo"
	"clinicledger/internal/infrastructure/storage/postgres/inventory_repo"
)

// AuditLog records and reads catalog changes.
type AuditLog interface {
	audit.Recorder
	audit.Reader
}

// Storage is one storage driver's implementation of every persistence contract.
type Storage struct {
	Driver string

	TxManager   tx.Manager
	Items       inventory.ItemRepository
	Movements   inventory.MovementRepository
	Procedures  procedure.Repository
	Invoices    billing.Repository
	Numerator   numerator.Generator
	Publisher   events.Publisher
	Audit       AuditLog
	Idempotency idempotency.Store

	// Postgres only.
	Pool       *postgres.Pool
	PgTx       *postgres.TxManager

	close func()
}

// Close releases driver resources.
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// NewMemoryStorage builds the in-memory driver.
func NewMemoryStorage(opts ...memory.Option) *Storage {
	store := memory.New(opts...)
	return &Storage{
		Driver:      config.DriverMemory,
		TxManager:   store,
		Items:       store.Items(),
		Movements:   store.Movements(),
		Procedures:  store.Procedures(),
		Invoices:    store.Invoices(),
		Numerator:   store,
		Publisher:   store,
		Audit:       store,
		Idempotency: store,
	}
}

// NewPostgresStorage connects to PostgreSQL and builds the repositories.
func NewPostgresStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	if cfg.Database.MinConns > 0 {
		poolCfg.MinConns = cfg.Database.MinConns
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	txOpts := postgres.DefaultTxOptions()
	if cfg.Database.StatementTimeout > 0 {
		txOpts.StatementTimeout = cfg.Database.StatementTimeout
	}
	retry := postgres.RetryConfig{
		MaxRetries: cfg.Database.TxMaxRetries,
		Backoff:    cfg.Database.TxRetryBackoff,
	}
	txm := postgres.NewTxManager(pool, txOpts, retry)

	auditLog, err := postgres.NewAuditLog(txm, postgres.DefaultCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit log: %w", err)
	}

	return &Storage{
		Driver:      config.DriverPostgres,
		TxManager:   txm,
		Items:       inventory_repo.NewItemRepo(txm),
		Movements:   inventory_repo.NewMovementRepo(txm),
		Procedures:  catalog_repo.NewProcedureRepo(txm),
		Invoices:    billing_repo.NewInvoiceRepo(txm),
		Numerator:   infranumerator.New(txm),
		Publisher:   postgres.NewOutboxPublisher(txm),
		Audit:       auditLog,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL),
		Pool:        pool,
		PgTx:        txm,
		close:       pool.Close,
	}, nil
}

// NewStorage builds the driver selected by cfg.Database.Driver.
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return NewMemoryStorage(memory.WithIdempotencyTTL(cfg.Idempotency.TTL)), nil
	case config.DriverPostgres:
		return NewPostgresStorage(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Database.Driver)
}

// Package main provides the maintenance CLI. Every command holds a Redis lock
// so two operators cannot run it at once.
// Usage: maintenance backfill-folios
//
//	maintenance reconcile
//	maintenance set-counter <scope> <year> <value>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bsm/redislock"

	"clinicledger/internal/app"
	"clinicledger/internal/config"
	"clinicledger/internal/infrastructure/eventbus"
	"clinicledger/internal/infrastructure/locker"
	"clinicledger/pkg/logger"
)

const lockTTL = time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var cmd func(ctx context.Context, env *env, args []string) error
	switch os.Args[1] {
	case "backfill-folios":
		cmd = backfillFolios
	case "reconcile":
		cmd = reconcile
	case "set-counter":
		cmd = setCounter
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err := run(os.Args[1], cmd, os.Args[2:]); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Clinic Ledger Maintenance CLI

Usage:
  maintenance <command> [args]

Commands:
  backfill-folios                    Assign folios to invoices created without one
  reconcile                          Replay every item's movements and report drift
  set-counter <scope> <year> <value> Overwrite a folio counter
  help                               Show this help

Environment Variables:
  CLINIC_CONFIG         Optional path to a config file
  CLINIC_DATABASE_DSN   PostgreSQL connection string (required)
  CLINIC_REDIS_URL      Redis URL used for the command lock`)
}

type env struct {
	cfg      *config.Config
	log      *logger.Logger
	storage  *app.Storage
	services *app.Services
}

func run(name string, cmd func(ctx context.Context, env *env, args []string) error, args []string) error {
	cfg, err := config.Load(os.Getenv("CLINIC_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("maintenance requires the postgres driver, got %q", cfg.Database.Driver)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.IsDevelopment()})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	st, err := app.NewPostgresStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := app.NewServices(st, cfg)
	if err != nil {
		return err
	}

	rdb, err := eventbus.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	lk := locker.New(redislock.New(rdb), "clinicledger:maintenance:", lockTTL)
	e := &env{cfg: cfg, log: log.WithComponent("maintenance"), storage: st, services: svc}

	err = lk.Run(ctx, name, func(ctx context.Context) error {
		return cmd(ctx, e, args)
	})
	if errors.Is(err, locker.ErrBusy) {
		return fmt.Errorf("%s is already running elsewhere", name)
	}
	return err
}

func backfillFolios(ctx context.Context, e *env, _ []string) error {
	assigned, err := e.services.Billing.AssignPendingFolios(ctx)
	if err != nil {
		return err
	}
	for _, a := range assigned {
		fmt.Printf("%s  %s  %s\n", a.InvoiceID, a.Date.Format(time.DateOnly), a.Folio)
	}
	e.log.Infow("folio backfill finished", "assigned", len(assigned))
	return nil
}

func reconcile(ctx context.Context, e *env, _ []string) error {
	diverged, checked, err := e.services.Inventory.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range diverged {
		fmt.Printf("%s  recorded=%d replayed=%d raw=%d movements=%d\n",
			r.ItemID, r.RecordedStock, r.ReplayedStock, r.RawSum, r.Movements)
	}
	e.log.Infow("reconciliation finished", "checked", checked, "diverged", len(diverged))
	if len(diverged) > 0 {
		return fmt.Errorf("%d of %d items diverged", len(diverged), checked)
	}
	return nil
}

func setCounter(ctx context.Context, e *env, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: set-counter <scope> <year> <value>")
	}
	year, err := strconv.Atoi(args[1])
	if err != nil || year < 1 || year > 9999 {
		return fmt.Errorf("invalid year %q", args[1])
	}
	value, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", args[2])
	}

	numbering := e.cfg.Billing.Folio()
	numbering.Scope = args[0]
	period := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	err = e.storage.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return e.storage.Numerator.SetNextNumber(ctx, numbering, period, value)
	})
	if err != nil {
		return err
	}
	e.log.Infow("counter set", "counter", numbering.Key(period), "value", value)
	return nil
}

// Package main seeds a starter procedure catalog and supply list.
// Running it twice is safe: entries whose code or SKU already exists are skipped.
package main

import (
	"context"
	"fmt"
	"os"

	"clinicledger/internal/app"
	"clinicledger/internal/config"
	"clinicledger/internal/core/apperror"
	appctx "clinicledger/internal/core/context"
	"clinicledger/internal/core/types"
	"clinicledger/internal/domain/catalogs/procedure"
	"clinicledger/internal/domain/inventory"
	"clinicledger/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("CLINIC_CONFIG"))
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{ID: "seed", Source: "maintenance"})

	st, err := app.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer st.Close()

	svc, err := app.NewServices(st, cfg)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	log.Info("connected to database")

	created, skipped, err := seedProcedures(ctx, svc.Procedures)
	if err != nil {
		log.Fatalw("failed to seed procedures", "error", err)
	}
	log.Infow("procedures seeded", "created", created, "skipped", skipped)

	created, skipped, err = seedItems(ctx, svc.Inventory)
	if err != nil {
		log.Fatalw("failed to seed inventory items", "error", err)
	}
	log.Infow("inventory items seeded", "created", created, "skipped", skipped)
}

func amount(v int64) *types.MinorUnits {
	m := types.MinorUnits(v)
	return &m
}

func text(s string) *string { return &s }

var starterProcedures = []procedure.Input{
	{Code: "CONS", Name: "Consultation", Pricing: procedure.FixedPrice{Amount: amount(50000)}},
	{Code: "CLN", Name: "Dental cleaning", Pricing: procedure.FixedPrice{Amount: amount(80000)}},
	{Code: "XRAY", Name: "Periapical X-ray", Pricing: procedure.FixedPrice{Amount: amount(25000)}},
	{Code: "RES", Name: "Composite restoration", Pricing: procedure.VariableRange{Min: amount(90000), Max: amount(180000), Unit: text("tooth")}},
	{Code: "EXT", Name: "Extraction", Pricing: procedure.VariableRange{Min: amount(120000), Max: amount(350000), Unit: text("tooth")}},
	{Code: "ORTH", Name: "Orthodontic adjustment", Pricing: procedure.VariableRange{Min: amount(60000), Unit: text("session")}},
}

var starterItems = []inventory.ItemInput{
	{Name: "Nitrile gloves (M)", SKU: text("GLV-M"), Category: "PPE", Unit: "box", MinStock: 5},
	{Name: "Surgical masks", SKU: text("MSK-3P"), Category: "PPE", Unit: "box", MinStock: 5},
	{Name: "Anesthetic cartridges", SKU: text("ANS-LID"), Category: "Anesthesia", Unit: "cartridge", MinStock: 50},
	{Name: "Composite resin A2", SKU: text("RES-A2"), Category: "Restorative", Unit: "syringe", MinStock: 3},
	{Name: "Cotton rolls", SKU: text("CTN-RL"), Category: "Consumables", Unit: "pack", MinStock: 10},
}

func seedProcedures(ctx context.Context, svc *procedure.Service) (created, skipped int, err error) {
	for _, in := range starterProcedures {
		if _, err := svc.Create(ctx, in); err != nil {
			if apperror.IsCode(err, apperror.CodeDuplicate) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("procedure %s: %w", in.Code, err)
		}
		created++
	}
	return created, skipped, nil
}

func seedItems(ctx context.Context, svc *inventory.Service) (created, skipped int, err error) {
	for _, in := range starterItems {
		if _, err := svc.CreateItem(ctx, in); err != nil {
			if apperror.IsCode(err, apperror.CodeDuplicate) {
				skipped++
				continue
			}
			return created, skipped, fmt.Errorf("item %s: %w", *in.SKU, err)
		}
		created++
	}
	return created, skipped, nil
}

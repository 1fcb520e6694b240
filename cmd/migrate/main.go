// Package main applies the embedded database migrations.
// Usage: migrate up | down | status
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"clinicledger/db/migrations"
	"clinicledger/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "up", "down", "status":
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := run(command); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Clinic Ledger Migrations

Usage:
  migrate <command>

Commands:
  up      Apply all pending migrations
  down    Roll back the latest migration
  status  Show applied and pending migrations
  help    Show this help

Environment Variables:
  CLINIC_CONFIG         Optional path to a config file
  CLINIC_DATABASE_DSN   PostgreSQL connection string (required)`)
}

func run(command string) error {
	cfg, err := config.Load(os.Getenv("CLINIC_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return migrations.Run(db, command)
}

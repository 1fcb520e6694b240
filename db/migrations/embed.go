// Package migrations embeds the goose SQL migrations so binaries and
// integration tests apply the same schema.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds every migration file.
//
//go:embed *.sql
var FS embed.FS

// Run executes a goose command ("up", "down" or "status") against db.
func Run(db *sql.DB, command string) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "status":
		return goose.Status(db, ".")
	}
	return fmt.Errorf("unknown migration command %q", command)
}

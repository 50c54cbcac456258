// Package schema embeds the goose migrations.
package schema

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// Up applies every pending migration.
func Up(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

// Reset rolls back every applied migration.
func Reset(db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.Reset(db, ".")
}

func prepare() error {
	goose.SetBaseFS(FS)
	return goose.SetDialect("postgres")
}

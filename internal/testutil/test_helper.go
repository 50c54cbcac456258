// Package testutil prepares a migrated Postgres database for tests.
package testutil

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/johndosdos/friendlychat/sql/schema"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "../../")
	return root
}

// DbInit connects to TEST_DB_URL and resets it to an empty, fully migrated
// schema. The test is skipped when TEST_DB_URL is not set. The schema is
// reset again when the test finishes.
func DbInit(t testing.TB) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load(filepath.Join(ProjectRoot(), ".env")); err != nil {
		log.Printf("failed to load .env file: %+v", err)
	}

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	dbForGoose := stdlib.OpenDBFromPool(dbPool)
	if err := DbGooseReset(dbForGoose); err != nil {
		t.Fatalf("goose.Reset() error = %+v", err)
	}
	if err := DbGooseUp(dbForGoose); err != nil {
		t.Fatalf("goose.Up() error = %+v", err)
	}

	t.Cleanup(func() {
		if err := DbGooseReset(dbForGoose); err != nil {
			t.Errorf("goose.Reset() error = %+v", err)
		}
		if err := dbForGoose.Close(); err != nil {
			t.Errorf("db.Close() error = %+v", err)
		}
		dbPool.Close()
	})

	return dbPool
}

// DbGooseUp applies every embedded migration.
func DbGooseUp(db *sql.DB) error {
	return schema.Up(db)
}

func DbGooseReset(db *sql.DB) error {
	return schema.Reset(db)
}

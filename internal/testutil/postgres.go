//go:build integration

package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupPostgres starts a PostgreSQL container (or uses POSTGRES_URL) and
// returns a connection through the pgx driver. Everything is torn down when
// the test completes.
func SetupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	db, _ := SetupPostgresWithURL(t)
	return db
}

// SetupPostgresWithURL is SetupPostgres that also returns the connection URL.
func SetupPostgresWithURL(t *testing.T) (*sql.DB, string) {
	t.Helper()
	ctx := context.Background()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("jetbridge_test"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(ctx) })

		url, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to read connection string: %v", err)
		}
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to ping postgres: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	return db, url
}

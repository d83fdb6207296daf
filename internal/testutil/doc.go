// Package testutil provides test helpers for jet-bridge.
//
// This package includes:
//   - SQLite setup (pure Go, in memory, one database per test)
//   - PostgreSQL setup backed by a testcontainers container
//   - SQL and error-code assertion helpers
//
// # Build Tags
//
// SQLite helpers are always available. PostgreSQL helpers need Docker and
// the integration tag:
//
//	go test ./... -tags=integration
//
// # Environment Variables
//
//	POSTGRES_URL - use an existing PostgreSQL server instead of a container
//
// # Example Usage
//
//	func TestReflect(t *testing.T) {
//	    db := testutil.SetupSQLite(t)
//	    testutil.ExecSQL(t, db, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
//	    ...
//	}
package testutil

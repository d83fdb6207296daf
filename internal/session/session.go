// Package session provides the request-scoped database session used by
// filtering and sibling navigation. A Session is not safe for concurrent
// use; each request gets its own.
package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// Session wraps a lazily started transaction. After a failed statement the
// transaction is rolled back and the next statement starts a new one.
type Session struct {
	db   *sql.DB
	opts *sql.TxOptions
	tx   *sql.Tx
}

// New creates a session on db. opts may be nil.
func New(db *sql.DB, opts *sql.TxOptions) *Session {
	return &Session{db: db, opts: opts}
}

// Active reports whether a transaction is open.
func (s *Session) Active() bool {
	return s.tx != nil
}

func (s *Session) begin(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, s.opts)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to begin transaction")
	}
	s.tx = tx
	return tx, nil
}

// Query runs a query inside the session's transaction. On failure the
// transaction is rolled back before the error is returned.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.Fail(alerr.Wrap(alerr.ErrSQLExecution, err, "failed to execute query").WithSQL(query))
	}
	return rows, nil
}

// QueryRow runs a query expected to return one row and scans it into dest.
// sql.ErrNoRows is returned unwrapped and does not roll back.
func (s *Session) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx, query, args...).Scan(dest...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return err
	default:
		return s.Fail(alerr.Wrap(alerr.ErrSQLExecution, err, "failed to execute query").WithSQL(query))
	}
}

// Fail rolls back the open transaction and returns err. A rollback failure
// is joined to err.
func (s *Session) Fail(err error) error {
	if rbErr := s.Rollback(); rbErr != nil {
		return errors.Join(err, rbErr)
	}
	return err
}

// Rollback aborts the open transaction, if any.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to roll back transaction")
	}
	return nil
}

// Commit commits the open transaction, if any.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return alerr.Wrap(alerr.ErrSQLTransaction, err, "failed to commit transaction")
	}
	return nil
}

// Close ends the session, rolling back any open transaction.
func (s *Session) Close() error {
	return s.Rollback()
}

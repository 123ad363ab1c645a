package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/mediatask/internal/store"
)

// backend names PostgreSQL in store errors
const backend = "postgres"

// DBTX is the subset of *sql.DB and *sql.Tx the store needs
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresResultStore implements store.ResultStore
type PostgresResultStore struct {
	db DBTX
}

// NewPostgresResultStore creates a store on db. Run Migrate first.
func NewPostgresResultStore(db DBTX) *PostgresResultStore {
	return &PostgresResultStore{db: db}
}

// Get implements store.ResultStore
func (s *PostgresResultStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, store.ErrInvalidKey
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM task_results WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		return nil, mapError("get", key, err)
	}
	return value, nil
}

// Set implements store.ResultStore
func (s *PostgresResultStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return store.ErrInvalidKey
	}
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_results (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return mapError("set", key, err)
	}
	return nil
}

// txBeginner is implemented by *sql.DB
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Append implements store.ResultStore. On a *sql.DB each append runs in its
// own transaction; on a *sql.Tx it joins the caller's.
func (s *PostgresResultStore) Append(ctx context.Context, listKey string, value string) error {
	if listKey == "" {
		return store.ErrInvalidKey
	}

	beginner, ok := s.db.(txBeginner)
	if !ok {
		return appendLocked(ctx, s.db, listKey, value)
	}

	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return mapError("append", listKey, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := appendLocked(ctx, tx, listKey, value); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("append", listKey, err)
	}
	return nil
}

// appendLocked inserts value under a transaction-scoped advisory lock on
// listKey. Appends to one list commit one at a time, so a reader never sees
// a position before every lower position of that list has committed.
func appendLocked(ctx context.Context, db DBTX, listKey, value string) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, listKey); err != nil {
		return mapError("append", listKey, err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO task_lists (list_key, value) VALUES ($1, $2)`,
		listKey, value); err != nil {
		return mapError("append", listKey, err)
	}
	return nil
}

// List implements store.ResultStore
func (s *PostgresResultStore) List(ctx context.Context, listKey string) ([]string, error) {
	if listKey == "" {
		return nil, store.ErrInvalidKey
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM task_lists WHERE list_key = $1 ORDER BY position`,
		listKey)
	if err != nil {
		return nil, mapError("list", listKey, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, mapError("list", listKey, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list", listKey, err)
	}
	return values, nil
}

// Ping implements store.Pinger when the store runs on a *sql.DB
func (s *PostgresResultStore) Ping(ctx context.Context) error {
	pinger, ok := s.db.(interface{ PingContext(context.Context) error })
	if !ok {
		return nil
	}
	if err := pinger.PingContext(ctx); err != nil {
		return mapError("ping", "", err)
	}
	return nil
}

// mapError maps a database error to a store error. Missing rows become
// ErrNotFound, context errors pass through, and everything else is
// ErrUnavailable with the PostgreSQL code kept in the chain.
func mapError(operation, key string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.NewStoreError(backend, operation, key, store.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return store.NewStoreError(backend, operation, key, err)
	case isUndefinedTable(err):
		return store.Unavailable(backend, operation, key, fmt.Errorf("schema not migrated: %w", err))
	default:
		return store.Unavailable(backend, operation, key, err)
	}
}

// undefinedTableCode is the PostgreSQL error code for a missing relation
const undefinedTableCode = "42P01"

// isUndefinedTable reports whether err comes from a missing table, which
// means migrations have not run
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTableCode
}

var (
	_ store.ResultStore = (*PostgresResultStore)(nil)
	_ store.Pinger      = (*PostgresResultStore)(nil)
)

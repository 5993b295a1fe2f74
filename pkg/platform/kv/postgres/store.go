// Package postgres implements kv.Store on a single Postgres table.
//
// Each transaction runs at SERIALIZABLE isolation; reads go straight to the
// table through the SQL transaction and writes are flushed in one batch
// upsert right before COMMIT.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/lib/pq"

	dErrors "desci/pkg/domain-errors"
	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
	txcontext "desci/pkg/platform/tx"
)

const (
	driverName         = "pgx"
	defaultTxTimeout   = 5 * time.Second
	serializationError = "40001"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a Postgres-backed kv.Store.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTxTimeout bounds each transaction when the caller's context has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(db, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. The caller owns schema setup.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the kv_entries table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure kv schema: %w", err)
	}
	return nil
}

// DB exposes the pool so collaborators (the event outbox) share connections.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx kv.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if tx, ok := kv.TxFrom(ctx); ok {
		return fn(ctx, tx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin kv transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	overlay := kv.NewOverlay(&reader{tx: sqlTx})
	txCtx := txcontext.WithTx(kv.WithTx(ctx, overlay), sqlTx)
	if err := fn(txCtx, overlay); err != nil {
		return err
	}

	if err := flush(ctx, sqlTx, overlay.Writes()); err != nil {
		return translate(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return translate(fmt.Errorf("commit kv transaction: %w", err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func flush(ctx context.Context, tx *sql.Tx, writes []kv.Write) error {
	if len(writes) == 0 {
		return nil
	}
	keys := make([]string, len(writes))
	values := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = w.Key
		values[i] = string(w.Value)
	}
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		SELECT k, v::jsonb, now()
		FROM unnest($1::text[], $2::text[]) AS t(k, v)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, pq.Array(keys), pq.Array(values)); err != nil {
		return fmt.Errorf("upsert kv entries: %w", err)
	}
	return nil
}

// translate maps serialization failures to sentinel.ErrConflict so the
// invocation runner can retry them.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationError {
		return fmt.Errorf("%w: %s", sentinel.ErrConflict, pgErr.Message)
	}
	return err
}

type reader struct {
	tx *sql.Tx
}

func (r *reader) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.tx.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

func (r *reader) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM kv_entries WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, translate(err)
	}
	return exists, nil
}

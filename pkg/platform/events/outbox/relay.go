package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"desci/pkg/platform/events"
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Relay forwards undelivered outbox rows to a sink. Rows are claimed with
// FOR UPDATE SKIP LOCKED so several relays can run against one database.
type Relay struct {
	db        *sql.DB
	sink      events.Sink
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// NewRelay creates a relay from db to sink.
func NewRelay(db *sql.DB, sink events.Sink, opts ...RelayOption) *Relay {
	r := &Relay{
		db:        db,
		sink:      sink,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. A failed batch is retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce delivers at most one batch and returns how many events it sent.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin relay transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY position
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select pending outbox entries: %w", err)
	}
	var (
		ids   []string
		batch []events.Event
	)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		var e events.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("decode outbox entry %s: %w", id, err)
		}
		ids = append(ids, id)
		batch = append(batch, e)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := r.sink.Publish(ctx, batch); err != nil {
		return 0, fmt.Errorf("publish outbox batch: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE event_outbox SET published_at = now() WHERE id = ANY($1::uuid[])`,
		pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("mark outbox entries published: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit relay transaction: %w", err)
	}
	return len(batch), nil
}

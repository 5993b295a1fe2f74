// Package outbox implements the transactional outbox for contract events.
//
// Store.Record writes events through the SQL transaction found in context, so
// they commit or roll back together with the ledger state of the invocation.
// Relay later forwards undelivered rows to a sink and marks them published.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"desci/pkg/platform/events"
	txcontext "desci/pkg/platform/tx"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_outbox (
	position      BIGSERIAL PRIMARY KEY,
	id            UUID NOT NULL UNIQUE,
	invocation_id UUID NOT NULL,
	sequence      INT NOT NULL,
	contract      TEXT NOT NULL,
	event_tag     TEXT NOT NULL,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS event_outbox_pending ON event_outbox (position) WHERE published_at IS NULL;
`

// Store implements events.Recorder on Postgres.
type Store struct {
	db *sql.DB
}

// New creates an outbox store on db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the outbox table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure outbox schema: %w", err)
	}
	return nil
}

// Record appends evts to the outbox in one statement, preserving their order.
func (s *Store) Record(ctx context.Context, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	ids := make([]string, len(evts))
	invocations := make([]string, len(evts))
	sequences := make([]int64, len(evts))
	contracts := make([]string, len(evts))
	tags := make([]string, len(evts))
	payloads := make([]string, len(evts))
	for i, e := range evts {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		ids[i] = e.ID.String()
		invocations[i] = e.Invocation.String()
		sequences[i] = int64(e.Sequence)
		contracts[i] = e.Contract
		tags[i] = e.Tag()
		payloads[i] = string(payload)
	}

	query := `
		INSERT INTO event_outbox (id, invocation_id, sequence, contract, event_tag, payload)
		SELECT id, inv, seq, contract, tag, payload::jsonb
		FROM unnest($1::uuid[], $2::uuid[], $3::int[], $4::text[], $5::text[], $6::text[])
			WITH ORDINALITY AS t(id, inv, seq, contract, tag, payload, ord)
		ORDER BY ord
	`
	_, err := txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		pq.Array(ids),
		pq.Array(invocations),
		pq.Array(sequences),
		pq.Array(contracts),
		pq.Array(tags),
		pq.Array(payloads),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entries: %w", err)
	}
	return nil
}

// Pending returns the number of undelivered rows.
func (s *Store) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM event_outbox WHERE published_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return n, nil
}

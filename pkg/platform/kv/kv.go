// Package kv defines the transactional key-value contract every ledger
// component stores its state through.
//
// A transaction buffers writes in an Overlay and only hands them to the
// backend when the caller's function returns nil, so an aborted invocation
// leaves no trace regardless of how many writes it attempted.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"desci/pkg/platform/sentinel"
)

// Reader is the read half of a transaction.
type Reader interface {
	// Get returns the stored value or an error wrapping sentinel.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Has(ctx context.Context, key string) (bool, error)
}

// Tx is a single all-or-nothing unit of work.
type Tx interface {
	Reader
	Set(ctx context.Context, key string, value []byte) error
}

// Store opens transactions against a backend.
type Store interface {
	// RunInTx runs fn inside a transaction. Writes are committed only if fn
	// returns nil. A concurrent modification detected at commit surfaces as
	// an error wrapping sentinel.ErrConflict.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores the active transaction in context so collaborators invoked
// during the same unit of work can join it.
func WithTx(ctx context.Context, tx Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// TxFrom extracts the active transaction from context if present.
func TxFrom(ctx context.Context) (Tx, bool) {
	tx, ok := ctx.Value(txKey).(Tx)
	return tx, ok
}

// GetJSON decodes the value at key into v. found is false when the key is absent.
func GetJSON(ctx context.Context, r Reader, key string, v any) (found bool, err error) {
	raw, err := r.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and writes it at key.
func SetJSON(ctx context.Context, tx Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return tx.Set(ctx, key, raw)
}

// Package redis implements kv.Store on Redis with optimistic concurrency.
//
// Every key a transaction reads from Redis is WATCHed before the read; the
// buffered writes are applied in a MULTI/EXEC block that Redis rejects if any
// watched key changed in between.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
)

const defaultPrefix = "desci:"

// Store is a Redis-backed kv.Store.
type Store struct {
	client *redis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key. Defaults to "desci:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New wraps client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx kv.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := kv.TxFrom(ctx); ok {
		return fn(ctx, tx)
	}

	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		overlay := kv.NewOverlay(&reader{tx: rtx, prefix: s.prefix})
		if err := fn(kv.WithTx(ctx, overlay), overlay); err != nil {
			return err
		}
		writes := overlay.Writes()
		if len(writes) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range writes {
				pipe.Set(ctx, s.prefix+w.Key, w.Value, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: watched key modified", sentinel.ErrConflict)
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

type reader struct {
	tx     *redis.Tx
	prefix string
}

func (r *reader) Get(ctx context.Context, key string) ([]byte, error) {
	k := r.prefix + key
	if err := r.tx.Watch(ctx, k).Err(); err != nil {
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}
	v, err := r.tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *reader) Has(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	if err := r.tx.Watch(ctx, k).Err(); err != nil {
		return false, fmt.Errorf("watch %s: %w", key, err)
	}
	n, err := r.tx.Exists(ctx, k).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

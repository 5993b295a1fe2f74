package memory

import (
	"context"
	"sync"

	"desci/pkg/platform/kv"
	"desci/pkg/platform/sentinel"
)

// Store is an in-process kv.Store. Transactions are serialized; each one
// reads through a kv.Overlay and the buffered writes are copied into the map
// only when the transaction function succeeds.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx kv.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := kv.TxFrom(ctx); ok {
		return fn(ctx, tx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	overlay := kv.NewOverlay(reader{s})
	txCtx := kv.WithTx(ctx, overlay)
	if err := fn(txCtx, overlay); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range overlay.Writes() {
		s.data[w.Key] = w.Value
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a copy of the committed state.
func (s *Store) Snapshot() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

type reader struct{ s *Store }

func (r reader) Get(_ context.Context, key string) ([]byte, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.data[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v, nil
}

func (r reader) Has(_ context.Context, key string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.data[key]
	return ok, nil
}

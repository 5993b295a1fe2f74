package kv

import (
	"context"
	"errors"
	"fmt"

	"desci/pkg/platform/sentinel"
)

// Write is one buffered key assignment.
type Write struct {
	Key   string
	Value []byte
}

// Overlay buffers writes on top of a backend reader. Reads see the
// transaction's own writes first. Backends call Writes on commit and Reads to
// validate optimistic concurrency.
type Overlay struct {
	base   Reader
	writes map[string][]byte
	order  []string
	reads  map[string]bool
}

// NewOverlay wraps base.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{
		base:   base,
		writes: make(map[string][]byte),
		reads:  make(map[string]bool),
	}
}

func (o *Overlay) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := o.writes[key]; ok {
		return clone(v), nil
	}
	o.reads[key] = true
	v, err := o.base.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return clone(v), nil
}

func (o *Overlay) Has(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := o.writes[key]; ok {
		return true, nil
	}
	o.reads[key] = true
	return o.base.Has(ctx, key)
}

func (o *Overlay) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("kv: empty key")
	}
	if _, ok := o.writes[key]; !ok {
		o.order = append(o.order, key)
	}
	o.writes[key] = clone(value)
	return nil
}

// Writes returns the buffered writes in first-write order. A key written
// several times appears once with its final value.
func (o *Overlay) Writes() []Write {
	out := make([]Write, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, Write{Key: k, Value: o.writes[k]})
	}
	return out
}

// ReadKeys returns every key read from the backend (not from the buffer).
func (o *Overlay) ReadKeys() []string {
	out := make([]string, 0, len(o.reads))
	for k := range o.reads {
		out = append(out, k)
	}
	return out
}

// Dirty reports whether the transaction buffered any write.
func (o *Overlay) Dirty() bool { return len(o.order) > 0 }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

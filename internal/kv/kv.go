// Package kv defines the string key/value medium the capsule store persists into,
// plus the backends that implement it.
//
// A KV has no cross-key transactions of its own. Backends that can apply several
// writes atomically also implement Batcher; callers use Apply, which picks the
// atomic path when it is available and falls back to ordered single writes.
package kv

import (
	"context"
	"fmt"
)

// KV is a flat string key/value store.
type KV interface {
	// Get returns the value for key. A missing key is ok=false with a nil error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set overwrites the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns every stored key with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// OpKind is the kind of write carried by an Op.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Op is a single write in a batch.
type Op struct {
	Kind  OpKind
	Key   string
	Value string
}

// Put returns an Op that sets key to value.
func Put(key, value string) Op {
	return Op{Kind: OpSet, Key: key, Value: value}
}

// Remove returns an Op that deletes key.
func Remove(key string) Op {
	return Op{Kind: OpDelete, Key: key}
}

// Batcher is implemented by backends that apply a list of writes atomically.
type Batcher interface {
	Apply(ctx context.Context, ops []Op) error
}

// Apply writes ops to store. If store is a Batcher the writes land atomically;
// otherwise they run in order and stop at the first failure, so a later op is
// only attempted once every earlier one succeeded.
func Apply(ctx context.Context, store KV, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	if b, ok := store.(Batcher); ok {
		return b.Apply(ctx, ops)
	}
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpSet:
			err = store.Set(ctx, op.Key, op.Value)
		case OpDelete:
			err = store.Delete(ctx, op.Key)
		default:
			err = fmt.Errorf("unknown op kind %d", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

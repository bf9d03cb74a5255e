package store

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/kv"
)

// ListIndex returns the library index, most recently created first.
// An absent or malformed index reads as empty.
func (s *Store) ListIndex(ctx context.Context) ([]capsule.IndexEntry, error) {
	entries, err := readOr[[]capsule.IndexEntry](ctx, s, IndexKey, nil)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []capsule.IndexEntry{}
	}
	return entries, nil
}

// SaveIndex overwrites the index with entries.
func (s *Store) SaveIndex(ctx context.Context, entries []capsule.IndexEntry) error {
	raw, err := encodeIndex(entries)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, IndexKey, raw); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// SaveCapsule stores c under id, minting a new id when id is empty, and
// returns the id. Only UpdatedAt is stamped; CreatedAt is stored as given, so
// callers set it on first save. The caller's capsule is not modified.
func (s *Store) SaveCapsule(ctx context.Context, c *capsule.Capsule, id string) (string, error) {
	if c == nil {
		return "", errors.NewInvalidRequest("capsule is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id == "" {
		id = s.newID(now)
	}
	return id, s.write(ctx, c, id, capsule.Timestamp(now))
}

// LoadCapsule returns the capsule stored under id, or nil when it is absent,
// unreadable, or carries a different schema tag.
func (s *Store) LoadCapsule(ctx context.Context, id string) (*capsule.Capsule, error) {
	env, err := readOr[*capsule.Envelope](ctx, s, capsuleKey(id), nil)
	if err != nil {
		return nil, err
	}
	if env == nil || env.Schema != capsule.Schema || env.Capsule == nil {
		if env != nil {
			s.log.Debug("capsule schema mismatch, treating as absent", "id", id, "schema", env.Schema)
		}
		return nil, nil
	}
	return env.Capsule, nil
}

// DeleteCapsule removes the capsule, its progress, and its index entry.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteCapsule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.ListIndex(ctx)
	if err != nil {
		return err
	}
	kept := lo.Reject(entries, func(e capsule.IndexEntry, _ int) bool { return e.ID == id })

	ops := []kv.Op{kv.Remove(capsuleKey(id)), kv.Remove(progressKey(id))}
	if len(kept) != len(entries) {
		raw, err := encodeIndex(kept)
		if err != nil {
			return err
		}
		ops = append(ops, kv.Put(IndexKey, raw))
	}
	if err := kv.Apply(ctx, s.kv, ops); err != nil {
		return fmt.Errorf("delete capsule %s: %w", id, err)
	}
	return nil
}

// ExportCapsuleJSON returns the pretty-printed exchange text for c.
func (s *Store) ExportCapsuleJSON(c *capsule.Capsule) (string, error) {
	return capsule.ExportJSON(c)
}

// ValidateImported reports whether env may be imported.
func (s *Store) ValidateImported(env *capsule.Envelope) bool {
	return capsule.ValidateImported(env)
}

// ImportCapsule validates env and stores its capsule under a freshly minted id.
// An invalid payload is rejected with INVALID_SCHEMA before anything is written.
func (s *Store) ImportCapsule(ctx context.Context, env *capsule.Envelope) (string, error) {
	if !capsule.ValidateImported(env) {
		return "", errors.NewInvalidSchema()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := s.newID(now)
	return id, s.write(ctx, env.Capsule, id, capsule.Timestamp(now))
}

// write persists c under id and upserts its index entry. Caller holds s.mu.
func (s *Store) write(ctx context.Context, c *capsule.Capsule, id, stamp string) error {
	rec := c.Clone()
	rec.UpdatedAt = stamp

	entries, err := s.ListIndex(ctx)
	if err != nil {
		return err
	}
	entries = upsertEntry(entries, rec.ToIndexEntry(id))

	recRaw, err := encode(capsule.Wrap(rec))
	if err != nil {
		return fmt.Errorf("encode capsule: %w", err)
	}
	idxRaw, err := encodeIndex(entries)
	if err != nil {
		return err
	}

	// Record first, index second: without batches the index is only
	// rewritten once the record is safely stored.
	err = kv.Apply(ctx, s.kv, []kv.Op{
		kv.Put(capsuleKey(id), recRaw),
		kv.Put(IndexKey, idxRaw),
	})
	if err != nil {
		return fmt.Errorf("save capsule %s: %w", id, err)
	}
	return nil
}

// upsertEntry replaces the entry with the same id in place, or prepends e.
func upsertEntry(entries []capsule.IndexEntry, e capsule.IndexEntry) []capsule.IndexEntry {
	if _, i, ok := lo.FindIndexOf(entries, func(x capsule.IndexEntry) bool { return x.ID == e.ID }); ok {
		entries[i] = e
		return entries
	}
	return append([]capsule.IndexEntry{e}, entries...)
}

func encodeIndex(entries []capsule.IndexEntry) (string, error) {
	if entries == nil {
		entries = []capsule.IndexEntry{}
	}
	raw, err := encode(entries)
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}
	return raw, nil
}

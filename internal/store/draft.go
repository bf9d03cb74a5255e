package store

import (
	"context"
	"fmt"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
)

// Draft is unsaved author-form state. ID is set when the draft edits an
// existing capsule.
type Draft struct {
	ID      string          `json:"id,omitempty"`
	Capsule capsule.Capsule `json:"capsule"`
	SavedAt string          `json:"savedAt"`
}

// SaveDraft overwrites the current draft.
func (s *Store) SaveDraft(ctx context.Context, d *Draft) error {
	if d == nil {
		return errors.NewInvalidRequest("draft is required")
	}
	out := *d
	out.SavedAt = capsule.Timestamp(s.now())
	raw, err := encode(out)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.kv.Set(ctx, DraftKey, raw); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

// LoadDraft returns the current draft, or nil when there is none or it is unreadable.
func (s *Store) LoadDraft(ctx context.Context) (*Draft, error) {
	return readOr[*Draft](ctx, s, DraftKey, nil)
}

// ClearDraft discards the current draft.
func (s *Store) ClearDraft(ctx context.Context) error {
	if err := s.kv.Delete(ctx, DraftKey); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// EditDraft replaces the draft with a copy of the stored capsule id.
func (s *Store) EditDraft(ctx context.Context, id string) (*Draft, error) {
	c, err := s.LoadCapsule(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.NewNotFound(id)
	}
	d := &Draft{ID: id, Capsule: *c}
	if err := s.SaveDraft(ctx, d); err != nil {
		return nil, err
	}
	return s.LoadDraft(ctx)
}

// CommitDraft saves the draft as a capsule (updating its source capsule when
// editing) and clears it. Drafts that fail capsule.Lint are rejected and kept.
func (s *Store) CommitDraft(ctx context.Context) (string, error) {
	d, err := s.LoadDraft(ctx)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", errors.NewInvalidRequest("no draft to commit")
	}
	if res := capsule.Lint(&d.Capsule); !res.Valid {
		return "", errors.NewCapsuleInvalid(res.Problems)
	}

	c := d.Capsule
	if c.CreatedAt == "" && d.ID != "" {
		src, err := s.LoadCapsule(ctx, d.ID)
		if err != nil {
			return "", err
		}
		if src != nil {
			c.CreatedAt = src.CreatedAt
		}
	}
	if c.CreatedAt == "" {
		c.CreatedAt = capsule.Timestamp(s.now())
	}

	id, err := s.SaveCapsule(ctx, &c, d.ID)
	if err != nil {
		return "", err
	}
	if err := s.ClearDraft(ctx); err != nil {
		return id, err
	}
	return id, nil
}

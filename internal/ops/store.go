package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// StoreInput contains parameters for the Store operation.
type StoreInput struct {
	ID      string           // optional; empty creates a new capsule
	Capsule *capsule.Capsule // required
}

// StoreOutput contains the result of the Store operation.
type StoreOutput struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// Store lints an authored capsule and saves it, creating or updating by id.
func Store(ctx context.Context, api store.API, input StoreInput) (*StoreOutput, error) {
	if input.Capsule == nil {
		return nil, errors.NewInvalidRequest("capsule is required")
	}

	id := strings.TrimSpace(input.ID)
	if id != "" {
		var err error
		if id, err = ValidateID(id); err != nil {
			return nil, err
		}
	}

	if res := capsule.Lint(input.Capsule); !res.Valid {
		return nil, errors.NewCapsuleInvalid(res.Problems)
	}

	c := input.Capsule.Clone()
	created := id == ""
	if !created {
		existing, err := api.LoadCapsule(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err)
		}
		created = existing == nil
		if existing != nil && c.CreatedAt == "" {
			c.CreatedAt = existing.CreatedAt
		}
	}
	// createdAt is set once, on the first save.
	if c.CreatedAt == "" {
		c.CreatedAt = capsule.Timestamp(time.Now())
	}

	savedID, err := api.SaveCapsule(ctx, c, id)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	return &StoreOutput{ID: savedID, Created: created}, nil
}

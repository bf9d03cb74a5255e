package ops

import (
	"context"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	ID       string           `json:"id"`
	Capsule  *capsule.Capsule `json:"capsule"`
	Progress capsule.Progress `json:"progress"`
}

// Fetch retrieves a capsule and its progress by id.
func Fetch(ctx context.Context, api store.API, id string) (*FetchOutput, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}

	c, err := api.LoadCapsule(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	if c == nil {
		return nil, errors.NewNotFound(id)
	}

	p, err := api.GetProgress(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	return &FetchOutput{ID: id, Capsule: c, Progress: p}, nil
}

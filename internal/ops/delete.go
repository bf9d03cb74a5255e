package ops

import (
	"context"

	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"` // false when nothing was stored under id
	ID      string `json:"id"`
}

// Delete removes a capsule with its progress and index entry. Unknown ids are not an error.
func Delete(ctx context.Context, api store.API, id string) (*DeleteOutput, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}

	existing, err := api.LoadCapsule(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	if err := api.DeleteCapsule(ctx, id); err != nil {
		return nil, errors.Wrap(err)
	}

	return &DeleteOutput{Deleted: existing != nil, ID: id}, nil
}

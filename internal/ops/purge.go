package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/pocket/internal/errors"
)

// Purger removes progress records left behind by capsules that no longer exist.
type Purger interface {
	PurgeOrphanProgress(ctx context.Context) ([]string, error)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int      `json:"purged"`
	IDs     []string `json:"ids"`
	Message string   `json:"message"`
}

// Purge deletes orphaned progress records.
func Purge(ctx context.Context, p Purger) (*PurgeOutput, error) {
	ids, err := p.PurgeOrphanProgress(ctx)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &PurgeOutput{
		Purged:  len(ids),
		IDs:     ids,
		Message: formatPurgeMessage(len(ids)),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int) string {
	if count == 0 {
		return "No orphaned progress to purge"
	}
	recordWord := "record"
	if count > 1 {
		recordWord = "records"
	}
	return fmt.Sprintf("Deleted %d orphaned progress %s", count, recordWord)
}

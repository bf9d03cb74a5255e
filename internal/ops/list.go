package ops

import (
	"context"

	"github.com/samber/lo"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Subject string // optional, matched after Normalize
	Level   string // optional, matched after Normalize
	Limit   int    // default: 20, max: 100
	Offset  int    // default: 0
}

// ListItem is an index entry with the learner's progress for it.
type ListItem struct {
	capsule.IndexEntry
	BestScore  int `json:"bestScore"`
	KnownCount int `json:"knownCount"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []ListItem `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// List returns a page of the library index in stored order (newest first).
func List(ctx context.Context, api store.API, input ListInput) (*ListOutput, error) {
	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	// Ensure offset is non-negative
	offset := max(input.Offset, 0)

	entries, err := api.ListIndex(ctx)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	entries = lo.Filter(entries, func(e capsule.IndexEntry, _ int) bool {
		return matches(e.Subject, input.Subject) && matches(e.Level, input.Level)
	})
	total := len(entries)

	page := entries[min(offset, total):min(offset+limit, total)]
	items := make([]ListItem, 0, len(page))
	for _, e := range page {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("list")
		}
		p, err := api.GetProgress(ctx, e.ID)
		if err != nil {
			return nil, errors.Wrap(err)
		}
		items = append(items, ListItem{
			IndexEntry: e,
			BestScore:  p.BestScore,
			KnownCount: len(p.KnownFlashcards),
		})
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

func matches(value, filter string) bool {
	filter = capsule.Normalize(filter)
	return filter == "" || capsule.Normalize(value) == filter
}

package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// ProgressOutput is the learner state for one capsule.
type ProgressOutput struct {
	ID       string           `json:"id"`
	Progress capsule.Progress `json:"progress"`
}

// GetProgress returns the progress for id. Unknown ids read as defaults.
func GetProgress(ctx context.Context, api store.API, id string) (*ProgressOutput, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}
	p, err := api.GetProgress(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &ProgressOutput{ID: id, Progress: p}, nil
}

// SaveProgress validates p and overwrites the progress for id.
func SaveProgress(ctx context.Context, api store.API, id string, p capsule.Progress) (*ProgressOutput, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}
	if p.BestScore < 0 || p.BestScore > 100 {
		return nil, errors.NewInvalidRequest("bestScore must be between 0 and 100")
	}
	for _, card := range p.KnownFlashcards {
		if card < 0 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid flashcard index %d", card))
		}
	}
	if err := api.SaveProgress(ctx, id, p); err != nil {
		return nil, errors.Wrap(err)
	}
	return GetProgress(ctx, api, id)
}

// MarkKnown toggles flashcard card in the known set for id. The capsule must
// exist and have that card.
func MarkKnown(ctx context.Context, l Learner, id string, card int, known bool) (*ProgressOutput, error) {
	fetched, err := Fetch(ctx, l, id)
	if err != nil {
		return nil, err
	}
	if n := len(fetched.Capsule.Flashcards); card < 0 || card >= n {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("flashcard index %d out of range (capsule has %d)", card, n))
	}
	p, err := l.MarkKnown(ctx, fetched.ID, card, known)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &ProgressOutput{ID: fetched.ID, Progress: p}, nil
}

// RecordScore keeps the higher of score and the best score of an existing capsule.
func RecordScore(ctx context.Context, l Learner, id string, score int) (*ProgressOutput, error) {
	fetched, err := Fetch(ctx, l, id)
	if err != nil {
		return nil, err
	}
	p, err := l.RecordQuizScore(ctx, fetched.ID, score)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	return &ProgressOutput{ID: fetched.ID, Progress: p}, nil
}

package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/kv"
)

func defaultProgress() capsule.Progress {
	return capsule.Progress{BestScore: 0, KnownFlashcards: []int{}}
}

// GetProgress returns the learner state for id. Missing or malformed
// records read as zero score with no known flashcards.
func (s *Store) GetProgress(ctx context.Context, id string) (capsule.Progress, error) {
	p, err := readOr(ctx, s, progressKey(id), defaultProgress())
	if err != nil {
		return defaultProgress(), err
	}
	if p.KnownFlashcards == nil {
		p.KnownFlashcards = []int{}
	}
	return p, nil
}

// SaveProgress overwrites the progress record for id.
func (s *Store) SaveProgress(ctx context.Context, id string, p capsule.Progress) error {
	if p.KnownFlashcards == nil {
		p.KnownFlashcards = []int{}
	}
	raw, err := encode(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.kv.Set(ctx, progressKey(id), raw); err != nil {
		return fmt.Errorf("write progress %s: %w", id, err)
	}
	return nil
}

// RecordQuizScore keeps the higher of score and the stored best score.
func (s *Store) RecordQuizScore(ctx context.Context, id string, score int) (capsule.Progress, error) {
	if score < 0 || score > 100 {
		return capsule.Progress{}, errors.NewInvalidRequest("score must be between 0 and 100")
	}
	return s.updateProgress(ctx, id, func(p *capsule.Progress) {
		p.BestScore = max(p.BestScore, score)
	})
}

// MarkKnown adds or removes flashcard index card from the known set.
func (s *Store) MarkKnown(ctx context.Context, id string, card int, known bool) (capsule.Progress, error) {
	if card < 0 {
		return capsule.Progress{}, errors.NewInvalidRequest("flashcard index must be >= 0")
	}
	return s.updateProgress(ctx, id, func(p *capsule.Progress) {
		if known {
			p.KnownFlashcards = append(p.KnownFlashcards, card)
		} else {
			p.KnownFlashcards = lo.Without(p.KnownFlashcards, card)
		}
		p.KnownFlashcards = lo.Uniq(p.KnownFlashcards)
		slices.Sort(p.KnownFlashcards)
	})
}

func (s *Store) updateProgress(ctx context.Context, id string, fn func(*capsule.Progress)) (capsule.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.GetProgress(ctx, id)
	if err != nil {
		return capsule.Progress{}, err
	}
	fn(&p)
	if err := s.SaveProgress(ctx, id, p); err != nil {
		return capsule.Progress{}, err
	}
	return p, nil
}

// ProgressIDs returns the ids that have a stored progress record, sorted.
func (s *Store) ProgressIDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, ProgressPrefix)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return lo.Map(keys, func(k string, _ int) string {
		return strings.TrimPrefix(k, ProgressPrefix)
	}), nil
}

// PurgeOrphanProgress deletes progress records whose capsule record is gone
// and returns their ids.
func (s *Store) PurgeOrphanProgress(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ProgressIDs(ctx)
	if err != nil {
		return nil, err
	}
	capsuleKeys, err := s.kv.Keys(ctx, CapsulePrefix)
	if err != nil {
		return nil, fmt.Errorf("list capsules: %w", err)
	}
	stored := make(map[string]bool, len(capsuleKeys))
	for _, k := range capsuleKeys {
		stored[k] = true
	}

	orphans := lo.Filter(ids, func(id string, _ int) bool { return !stored[capsuleKey(id)] })
	if len(orphans) == 0 {
		return []string{}, nil
	}
	ops := lo.Map(orphans, func(id string, _ int) kv.Op { return kv.Remove(progressKey(id)) })
	if err := kv.Apply(ctx, s.kv, ops); err != nil {
		return nil, fmt.Errorf("purge progress: %w", err)
	}
	s.log.Debug("purged orphan progress", "count", len(orphans))
	return orphans, nil
}

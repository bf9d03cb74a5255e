package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
)

func TestGetProgress_Default(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.GetProgress(context.Background(), "never")
	require.NoError(t, err)
	require.Equal(t, capsule.Progress{BestScore: 0, KnownFlashcards: []int{}}, p)
}

func TestGetProgress_FailSoft(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	require.NoError(t, mem.Set(ctx, progressKey("x"), "garbage"))

	p, err := s.GetProgress(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, 0, p.BestScore)
	require.Equal(t, []int{}, p.KnownFlashcards)
}

func TestGetProgress_MissingKnownFlashcards(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)
	require.NoError(t, mem.Set(ctx, progressKey("x"), `{"bestScore":75}`))

	p, err := s.GetProgress(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, 75, p.BestScore)
	require.NotNil(t, p.KnownFlashcards)
}

func TestSaveProgress_Overwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SaveProgress(ctx, "x", capsule.Progress{BestScore: 90, KnownFlashcards: []int{0, 2}}))
	require.NoError(t, s.SaveProgress(ctx, "x", capsule.Progress{BestScore: 10}))

	p, err := s.GetProgress(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, capsule.Progress{BestScore: 10, KnownFlashcards: []int{}}, p)
}

func TestRecordQuizScore_KeepsBest(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, score := range []int{40, 80, 60} {
		_, err := s.RecordQuizScore(ctx, "x", score)
		require.NoError(t, err)
	}
	p, err := s.GetProgress(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, 80, p.BestScore)
}

func TestRecordQuizScore_OutOfRange(t *testing.T) {
	s, _ := newTestStore(t)
	for _, score := range []int{-1, 101} {
		_, err := s.RecordQuizScore(context.Background(), "x", score)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "score %d", score)
	}
}

func TestMarkKnown(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	steps := []struct {
		card  int
		known bool
		want  []int
	}{
		{2, true, []int{2}},
		{0, true, []int{0, 2}},
		{2, true, []int{0, 2}},
		{2, false, []int{0}},
		{5, false, []int{0}},
		{0, false, []int{}},
	}
	for _, st := range steps {
		p, err := s.MarkKnown(ctx, "x", st.card, st.known)
		require.NoError(t, err)
		require.Equal(t, st.want, p.KnownFlashcards, "after card=%d known=%v", st.card, st.known)
	}

	_, err := s.MarkKnown(ctx, "x", -1, true)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestMarkKnown_KeepsScore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.RecordQuizScore(ctx, "x", 70)
	require.NoError(t, err)
	p, err := s.MarkKnown(ctx, "x", 1, true)
	require.NoError(t, err)
	require.Equal(t, 70, p.BestScore)
}

func TestPurgeOrphanProgress(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	id, err := s.SaveCapsule(ctx, algebra(), "")
	require.NoError(t, err)
	require.NoError(t, s.SaveProgress(ctx, id, capsule.Progress{BestScore: 50}))
	require.NoError(t, s.SaveProgress(ctx, "ghost", capsule.Progress{KnownFlashcards: []int{7}}))
	require.NoError(t, s.SaveProgress(ctx, "gone", capsule.Progress{BestScore: 10}))

	ids, err := s.ProgressIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"ghost", "gone", id}, ids)

	purged, err := s.PurgeOrphanProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"ghost", "gone"}, purged)

	ids, err = s.ProgressIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{id}, ids)
	_, ok, err := mem.Get(ctx, progressKey("ghost"))
	require.NoError(t, err)
	require.False(t, ok)

	p, err := s.GetProgress(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 50, p.BestScore, "progress of stored capsules is kept")

	purged, err = s.PurgeOrphanProgress(ctx)
	require.NoError(t, err)
	require.Empty(t, purged)
}

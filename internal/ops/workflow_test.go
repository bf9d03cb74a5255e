package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pocket/internal/db"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/store"
)

// TestFullWorkflow exercises the capsule lifecycle on the SQLite backend:
// store → list → quiz → export → import → delete → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	backend, err := db.Open(cfg.BaseDir)
	require.NoError(t, err)
	s := store.New(backend)
	defer s.Close()

	// 1. Store
	storeOut, err := Store(ctx, s, StoreInput{Capsule: sampleCapsule("Lifecycle")})
	require.NoError(t, err)
	id := storeOut.ID

	// 2. List shows it with default progress
	listOut, err := List(ctx, s, ListInput{})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)
	require.Equal(t, id, listOut.Items[0].ID)
	require.Equal(t, 0, listOut.Items[0].BestScore)

	// 3. Quiz attempt and a known card
	quizOut, err := SubmitQuiz(ctx, s, id, []int{1, 0})
	require.NoError(t, err)
	require.Equal(t, 50, quizOut.Progress.BestScore)
	_, err = MarkKnown(ctx, s, id, 1, true)
	require.NoError(t, err)

	// 4. Export then import yields a second capsule without progress
	exportOut, err := Export(ctx, s, cfg, ExportInput{ID: id})
	require.NoError(t, err)
	importOut, err := Import(ctx, s, cfg, ImportInput{Path: exportOut.Path})
	require.NoError(t, err)
	require.NotEqual(t, id, importOut.ID)

	copied, err := Fetch(ctx, s, importOut.ID)
	require.NoError(t, err)
	require.Equal(t, 0, copied.Progress.BestScore)

	listOut, err = List(ctx, s, ListInput{})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 2)
	require.Equal(t, importOut.ID, listOut.Items[0].ID)
	require.Equal(t, 50, listOut.Items[1].BestScore)
	require.Equal(t, 1, listOut.Items[1].KnownCount)

	// 5. Delete the original
	delOut, err := Delete(ctx, s, id)
	require.NoError(t, err)
	require.True(t, delOut.Deleted)

	_, err = Fetch(ctx, s, id)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	progressOut, err := GetProgress(ctx, s, id)
	require.NoError(t, err)
	require.Equal(t, 0, progressOut.Progress.BestScore)

	listOut, err = List(ctx, s, ListInput{})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)
}

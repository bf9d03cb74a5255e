package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/kv"
)

var t0 = time.Date(2024, 3, 5, 6, 8, 9, 0, time.UTC)

// newTestStore returns a store over memory with a clock that ticks one
// second per call and sequential ids.
func newTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	tick := t0
	n := 0
	s := New(mem,
		WithClock(func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		}),
		WithIDFunc(func(time.Time) string {
			n++
			return fmt.Sprintf("id%d", n)
		}),
	)
	return s, mem
}

func algebra() *capsule.Capsule {
	return &capsule.Capsule{
		Meta:       capsule.Meta{Title: "Algebra"},
		Notes:      []string{"x+1=2"},
		Flashcards: []capsule.Flashcard{},
		Quiz:       []capsule.QuizQuestion{},
	}
}

func TestSaveCapsule_AlgebraScenario(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	id, err := s.SaveCapsule(ctx, algebra(), "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, err := s.LoadCapsule(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "Algebra", loaded.Meta.Title)

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].ID)
	require.Equal(t, "Algebra", entries[0].Title)
}

func TestSaveCapsule_RoundTripExceptTimestamps(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	in := &capsule.Capsule{
		Meta:       capsule.Meta{Title: "Cells", Subject: "Biology", Level: "Beginner", Description: "intro"},
		Notes:      []string{"cells have membranes"},
		Flashcards: []capsule.Flashcard{{Front: "Powerhouse", Back: "Mitochondria"}},
		Quiz: []capsule.QuizQuestion{{
			Question: "Which stores DNA?", Choices: []string{"Nucleus", "Ribosome", "Wall", "Vacuole"},
			Answer: 0, Explanation: "nucleus",
		}},
		CreatedAt: "2020-01-01T00:00:00.000Z",
	}
	want := in.Clone()

	id, err := s.SaveCapsule(ctx, in, "")
	require.NoError(t, err)
	require.Equal(t, want, in, "SaveCapsule must not modify its argument")

	got, err := s.LoadCapsule(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, got.UpdatedAt)
	require.Equal(t, "2020-01-01T00:00:00.000Z", got.CreatedAt, "CreatedAt is preserved")

	got.UpdatedAt = want.UpdatedAt
	require.Equal(t, want, got)
}

func TestSaveCapsule_StampsOnlyUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	id, err := s.SaveCapsule(ctx, algebra(), "")
	require.NoError(t, err)
	first, err := s.LoadCapsule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "2024-03-05T06:08:10.000Z", first.UpdatedAt)
	require.Empty(t, first.CreatedAt, "createdAt is the caller's to set")

	got := first.Clone()
	got.UpdatedAt = ""
	require.Equal(t, algebra(), got)

	first.CreatedAt = "2024-03-05T06:08:10.000Z"

	_, err = s.SaveCapsule(ctx, first, id)
	require.NoError(t, err)
	second, err := s.LoadCapsule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, "2024-03-05T06:08:11.000Z", second.UpdatedAt)
}

func TestSaveCapsule_SecondSaveUpdatesEntryInPlace(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first, err := s.SaveCapsule(ctx, &capsule.Capsule{Meta: capsule.Meta{Title: "First"}, Notes: []string{"a"}}, "")
	require.NoError(t, err)

	c := algebra()
	id, err := s.SaveCapsule(ctx, c, "")
	require.NoError(t, err)

	c.Meta.Subject = "Math"
	again, err := s.SaveCapsule(ctx, c, id)
	require.NoError(t, err)
	require.Equal(t, id, again)

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, id, entries[0].ID, "most recent creation first")
	require.Equal(t, "Math", entries[0].Subject)
	require.Equal(t, first, entries[1].ID)

	// Updating the older capsule keeps its position.
	_, err = s.SaveCapsule(ctx, &capsule.Capsule{Meta: capsule.Meta{Title: "First v2"}}, first)
	require.NoError(t, err)
	entries, err = s.ListIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{id, first}, []string{entries[0].ID, entries[1].ID})
	require.Equal(t, "First v2", entries[1].Title)
}

func TestSaveCapsule_UntitledIndexEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.SaveCapsule(ctx, &capsule.Capsule{Notes: []string{"n"}}, "")
	require.NoError(t, err)

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, capsule.Untitled, entries[0].Title)
}

func TestSaveCapsule_Nil(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.SaveCapsule(context.Background(), nil, "")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSaveCapsule_DefaultIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory())

	seen := map[string]bool{}
	for range 50 {
		id, err := s.SaveCapsule(ctx, algebra(), "")
		require.NoError(t, err)
		require.Len(t, id, 26)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 50)
}

func TestListIndex_FailSoft(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"object", `{"id":"x"}`},
		{"null", "null"},
		{"wrong element type", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, mem := newTestStore(t)
			require.NoError(t, mem.Set(ctx, IndexKey, tt.raw))

			entries, err := s.ListIndex(ctx)
			require.NoError(t, err)
			require.NotNil(t, entries)
			require.Empty(t, entries)
		})
	}
}

func TestListIndex_Absent(t *testing.T) {
	s, _ := newTestStore(t)
	entries, err := s.ListIndex(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestSaveIndex(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	entries := []capsule.IndexEntry{
		{ID: "b", Title: "Second"},
		{ID: "a", Title: "First"},
	}
	require.NoError(t, s.SaveIndex(ctx, entries))

	got, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, entries, got)

	require.NoError(t, s.SaveIndex(ctx, nil))
	raw, ok, err := mem.Get(ctx, IndexKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", raw)
}

func TestLoadCapsule_FailSoft(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "nope"},
		{"wrong schema", `{"schema":"pocket-classroom/v0","capsule":{"meta":{"title":"Old"}}}`},
		{"missing schema", `{"capsule":{"meta":{"title":"Old"}}}`},
		{"missing capsule", `{"schema":"pocket-classroom/v1"}`},
		{"null", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, mem := newTestStore(t)
			require.NoError(t, mem.Set(ctx, capsuleKey("x"), tt.raw))

			c, err := s.LoadCapsule(ctx, "x")
			require.NoError(t, err)
			require.Nil(t, c)
		})
	}
}

func TestLoadCapsule_Absent(t *testing.T) {
	s, _ := newTestStore(t)
	c, err := s.LoadCapsule(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestDeleteCapsule(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	keep, err := s.SaveCapsule(ctx, algebra(), "")
	require.NoError(t, err)
	gone, err := s.SaveCapsule(ctx, algebra(), "")
	require.NoError(t, err)
	require.NoError(t, s.SaveProgress(ctx, gone, capsule.Progress{BestScore: 50}))

	require.NoError(t, s.DeleteCapsule(ctx, gone))

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, keep, entries[0].ID)

	c, err := s.LoadCapsule(ctx, gone)
	require.NoError(t, err)
	require.Nil(t, c)

	_, ok, err := mem.Get(ctx, progressKey(gone))
	require.NoError(t, err)
	require.False(t, ok, "progress must be removed with the capsule")
}

func TestDeleteCapsule_UnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.SaveCapsule(ctx, algebra(), "")
	require.NoError(t, err)
	before, err := s.ListIndex(ctx)
	require.NoError(t, err)

	require.NoError(t, s.DeleteCapsule(ctx, "missing"))
	require.NoError(t, s.DeleteCapsule(ctx, "missing"))

	after, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestIndexMatchesRecords(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t)

	var ids []string
	for i := range 5 {
		id, err := s.SaveCapsule(ctx, &capsule.Capsule{Meta: capsule.Meta{Title: fmt.Sprintf("c%d", i)}}, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.DeleteCapsule(ctx, ids[1]))
	require.NoError(t, s.DeleteCapsule(ctx, ids[3]))

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	keys, err := mem.Keys(ctx, CapsulePrefix)
	require.NoError(t, err)
	require.Len(t, entries, len(keys))
	for _, e := range entries {
		c, err := s.LoadCapsule(ctx, e.ID)
		require.NoError(t, err)
		require.NotNil(t, c, "index entry %s has no record", e.ID)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c := algebra()
	orig, err := s.SaveCapsule(ctx, c, "")
	require.NoError(t, err)
	stored, err := s.LoadCapsule(ctx, orig)
	require.NoError(t, err)

	text, err := s.ExportCapsuleJSON(stored)
	require.NoError(t, err)
	env, err := capsule.ParseEnvelope([]byte(text))
	require.NoError(t, err)
	require.True(t, s.ValidateImported(env))

	id, err := s.ImportCapsule(ctx, env)
	require.NoError(t, err)
	require.NotEqual(t, orig, id)

	imported, err := s.LoadCapsule(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Algebra", imported.Meta.Title)
	require.Equal(t, []string{"x+1=2"}, imported.Notes)
	require.Equal(t, stored.CreatedAt, imported.CreatedAt)
	require.NotEqual(t, stored.UpdatedAt, imported.UpdatedAt)

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, id, entries[0].ID, "import prepends")
}

func TestImportCapsule_RejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		env  *capsule.Envelope
	}{
		{"nil", nil},
		{"wrong schema", &capsule.Envelope{Schema: "other", Capsule: algebra()}},
		{"missing title", &capsule.Envelope{Schema: capsule.Schema, Capsule: &capsule.Capsule{Notes: []string{"n"}}}},
		{"no content", &capsule.Envelope{Schema: capsule.Schema, Capsule: &capsule.Capsule{Meta: capsule.Meta{Title: "Empty"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem := newTestStore(t)

			_, err := s.ImportCapsule(context.Background(), tt.env)
			require.True(t, errors.Is(err, errors.ErrInvalidSchema), "err = %v", err)
			require.Equal(t, 0, mem.Len())
		})
	}
}

// failingKV fails every write to keys matching failKey.
type failingKV struct {
	*kv.Memory
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return stderrors.New("quota exceeded")
	}
	return f.Memory.Set(ctx, key, value)
}

// Apply shadows the embedded Memory.Apply with a different signature so
// failingKV is not a kv.Batcher.
func (f *failingKV) Apply() {}

func TestSaveCapsule_RecordFailureLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	backend := &failingKV{Memory: kv.NewMemory(), failKey: capsuleKey("id1")}
	s := New(backend, WithIDFunc(func(time.Time) string { return "id1" }))

	_, err := s.SaveCapsule(ctx, algebra(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exceeded")

	entries, err := s.ListIndex(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s := New(brokenKV{})

	_, err := s.ListIndex(ctx)
	require.Error(t, err)
	_, err = s.LoadCapsule(ctx, "x")
	require.Error(t, err)
	_, err = s.GetProgress(ctx, "x")
	require.Error(t, err)
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, bool, error) {
	return "", false, stderrors.New("disk gone")
}
func (brokenKV) Set(context.Context, string, string) error { return stderrors.New("disk gone") }
func (brokenKV) Delete(context.Context, ...string) error { return stderrors.New("disk gone") }
func (brokenKV) Keys(context.Context, string) ([]string, error) { return nil, stderrors.New("disk gone") }
func (brokenKV) Close() error { return nil }

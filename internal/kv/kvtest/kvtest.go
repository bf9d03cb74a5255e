// Package kvtest holds a behavioral suite every kv.KV backend must pass.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pocket/internal/kv"
)

// Run exercises store. The store must start empty.
func Run(t *testing.T, store kv.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pc_capsule_a", `{"schema":"x"}`))
		v, ok, err := store.Get(ctx, "pc_capsule_a")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `{"schema":"x"}`, v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pc_capsule_a", "v2"))
		v, _, err := store.Get(ctx, "pc_capsule_a")
		require.NoError(t, err)
		require.Equal(t, "v2", v)
	})

	t.Run("empty value is present", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "empty", ""))
		_, ok, err := store.Get(ctx, "empty")
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, store.Delete(ctx, "empty"))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pc_capsule_b", "b"))
		require.NoError(t, store.Set(ctx, "pc_progress_a", "p"))
		require.NoError(t, store.Set(ctx, "pc_capsule*", "literal star"))

		keys, err := store.Keys(ctx, "pc_capsule_")
		require.NoError(t, err)
		require.Equal(t, []string{"pc_capsule_a", "pc_capsule_b"}, keys)

		none, err := store.Keys(ctx, "nothing_")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "pc_capsule_b", "pc_capsule*", "never-existed"))
		_, ok, err := store.Get(ctx, "pc_capsule_b")
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, store.Delete(ctx))
	})

	t.Run("apply", func(t *testing.T) {
		err := kv.Apply(ctx, store, []kv.Op{
			kv.Put("pc_capsule_c", "c"),
			kv.Put("pc_capsules_index", "[]"),
			kv.Remove("pc_progress_a"),
		})
		require.NoError(t, err)

		v, ok, err := store.Get(ctx, "pc_capsule_c")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "c", v)

		_, ok, err = store.Get(ctx, "pc_progress_a")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/models"
)

// RunStoreContract exercises the behavior every docstore.Store backend must
// share. newStore is called once per subtest; the store is closed afterwards.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Helper()

	run := func(name string, fn func(t *testing.T, s docstore.Store)) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
	ctx := context.Background()

	run("GetMissing", func(t *testing.T, s docstore.Store) {
		_, err := s.Get(ctx, "strategies", "never-saved")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	run("MergeSetUnion", func(t *testing.T, s docstore.Store) {
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1", models.Document{"a": 1}))
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1", models.Document{"b": 2}))

		doc, err := s.Get(ctx, "strategies", "s1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, doc["a"])
		assert.EqualValues(t, 2, doc["b"])
	})

	run("MergeSetOverwritesPresentFields", func(t *testing.T, s docstore.Store) {
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1", models.Document{"a": 1, "name": "x"}))
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1", models.Document{"a": 5}))

		doc, err := s.Get(ctx, "strategies", "s1")
		require.NoError(t, err)
		assert.EqualValues(t, 5, doc["a"])
		assert.Equal(t, "x", doc["name"])
	})

	run("NestedMapsReplacedWhole", func(t *testing.T, s docstore.Store) {
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1",
			models.Document{"performance": map[string]any{"trade_count": 1, "total_pnl": 2.5}}))
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1",
			models.Document{"performance": map[string]any{"trade_count": 2}}))

		doc, err := s.Get(ctx, "strategies", "s1")
		require.NoError(t, err)
		perf, ok := doc.Sub("performance")
		require.True(t, ok)
		assert.EqualValues(t, 2, perf["trade_count"])
		assert.NotContains(t, perf, "total_pnl")
	})

	run("CollectionsAreIsolated", func(t *testing.T, s docstore.Store) {
		require.NoError(t, s.MergeSet(ctx, "strategies", "same", models.Document{"a": 1}))
		_, err := s.Get(ctx, "trades", "same")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	run("ServerTimestampResolved", func(t *testing.T, s docstore.Store) {
		before := time.Now().Add(-time.Minute)
		data := models.Document{"updated_at": docstore.ServerTimestamp}
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1", data))

		assert.True(t, docstore.IsServerTimestamp(data["updated_at"]), "caller data must not be mutated")

		doc, err := s.Get(ctx, "strategies", "s1")
		require.NoError(t, err)
		ts, ok := doc.Time("updated_at")
		require.True(t, ok, "updated_at should read back as a timestamp, got %T", doc["updated_at"])
		assert.True(t, ts.After(before))
	})

	run("AddGeneratesDistinctKeys", func(t *testing.T, s docstore.Store) {
		id1, err := s.Add(ctx, "trades", models.Document{"side": "buy", "logged_at": docstore.ServerTimestamp})
		require.NoError(t, err)
		id2, err := s.Add(ctx, "trades", models.Document{"side": "sell"})
		require.NoError(t, err)

		assert.NotEmpty(t, id1)
		assert.NotEqual(t, id1, id2)

		doc, err := s.Get(ctx, "trades", id1)
		require.NoError(t, err)
		assert.Equal(t, "buy", doc["side"])
		_, ok := doc.Time("logged_at")
		assert.True(t, ok)
	})

	run("Ping", func(t *testing.T, s docstore.Store) {
		assert.NoError(t, s.Ping(ctx))
	})

	run("ClosedStoreReturnsErrClosed", func(t *testing.T, s docstore.Store) {
		require.NoError(t, s.MergeSet(ctx, "strategies", "s1", models.Document{"a": 1}))
		require.NoError(t, s.Close())

		err := s.MergeSet(ctx, "strategies", "s1", models.Document{"a": 2})
		assert.ErrorIs(t, err, docstore.ErrClosed)

		_, err = s.Get(ctx, "strategies", "s1")
		assert.ErrorIs(t, err, docstore.ErrClosed)

		_, err = s.Add(ctx, "trades", models.Document{"side": "buy"})
		assert.ErrorIs(t, err, docstore.ErrClosed)

		assert.ErrorIs(t, s.Ping(ctx), docstore.ErrClosed)
		assert.NoError(t, s.Close(), "closing twice is harmless")
	})
}

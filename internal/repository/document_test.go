package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/models"
	"github.com/kjannette/aete-backend/internal/repository"
	"github.com/kjannette/aete-backend/internal/testutil"
)

func TestDocumentRepo_Contract(t *testing.T) {
	pool := testutil.SetupPool(t)

	testutil.RunStoreContract(t, func(t *testing.T) docstore.Store {
		_, err := pool.Exec(context.Background(), `TRUNCATE documents`)
		require.NoError(t, err)
		return repository.NewDocumentRepo(pool)
	})
}

func TestDocumentRepo_StoresJSONB(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewDocumentRepo(pool)
	ctx := context.Background()

	require.NoError(t, repo.MergeSet(ctx, models.CollectionStrategies, "s1", models.Document{
		"name":    "mean-reversion",
		"version": 1,
		"params":  map[string]any{"window": 20, "z": 1.5},
	}))

	var name string
	var window int
	err := pool.QueryRow(ctx,
		`SELECT data->>'name', (data->'params'->>'window')::int FROM documents WHERE collection = $1 AND id = $2`,
		models.CollectionStrategies, "s1",
	).Scan(&name, &window)
	require.NoError(t, err)
	assert.Equal(t, "mean-reversion", name)
	assert.Equal(t, 20, window)

	doc, err := repo.Get(ctx, models.CollectionStrategies, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc["version"])
	assert.Equal(t, map[string]any{"window": int64(20), "z": 1.5}, doc["params"])
}

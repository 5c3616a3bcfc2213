package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/gwrecharge/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := New(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "runs.db"))

	created := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)
	rec := storage.RunRecord{
		ID:        "run-1",
		CreatedAt: created,
		Status:    "running",
		GridSize:  126,
	}
	require.NoError(t, s.SaveRun(ctx, rec))

	rec.Status = "done"
	rec.FinishedAt = created.Add(time.Minute)
	rec.Behavioural = 14
	rec.Result = []byte{1, 2, 3}
	require.NoError(t, s.SaveRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "done", got.Status)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, rec.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, 126, got.GridSize)
	assert.Equal(t, 14, got.Behavioural)
	assert.Equal(t, []byte{1, 2, 3}, got.Result)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
	assert.NoError(t, s.CheckHealth(ctx))
}

func TestStoreListsOldestFirst(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	s := openStore(t, path)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.SaveRun(ctx, storage.RunRecord{
			ID:        id,
			CreatedAt: base.Add(time.Duration(2-i) * time.Hour),
			Status:    "failed",
			Error:     "calibration diverged",
			Result:    []byte{9},
		}))
	}

	recs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
	assert.Equal(t, "calibration diverged", recs[0].Error)
	assert.Nil(t, recs[0].Result)
	assert.True(t, recs[0].FinishedAt.IsZero())

	// the archive survives reopening
	require.NoError(t, s.Close())
	recs, err = openStore(t, path).ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

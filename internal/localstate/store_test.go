package localstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LastSyncRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, ok, err := store.LastSync(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSync(ctx, "m1", first))
	second := first.Add(time.Hour)
	require.NoError(t, store.SetLastSync(ctx, "m1", second))

	got, ok, err := store.LastSync(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(second))

	require.NoError(t, store.Forget(ctx, "m1"))
	_, ok, err = store.LastSync(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	at := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SetLastSync(context.Background(), "m2", at))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	got, ok, err := store.LastSync(context.Background(), "m2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, got.Equal(at))
}

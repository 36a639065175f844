package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	ev, err := store.Append(ctx, KindPipeline, StatusOK, map[string]any{
		"video_id": "sim-1",
		"file":     "/data/lofi.mp4",
	})
	require.NoError(t, err)
	assert.Positive(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())

	got, err := store.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, KindPipeline, got.Kind)
	assert.Equal(t, StatusOK, got.Status)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "sim-1", payload["video_id"])
}

func TestGetMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.Get(context.Background(), 999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListNewestFirstWithKindFilter(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, KindPipeline, StatusOK, map[string]string{"n": "1"})
	require.NoError(t, err)
	_, err = store.Append(ctx, "maintenance", StatusOK, map[string]string{"n": "2"})
	require.NoError(t, err)
	_, err = store.Append(ctx, KindPipeline, StatusError, map[string]string{"n": "3"})
	require.NoError(t, err)

	all, err := store.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)

	pipelineOnly, err := store.List(ctx, KindPipeline, 10)
	require.NoError(t, err)
	require.Len(t, pipelineOnly, 2)
	for _, ev := range pipelineOnly {
		assert.Equal(t, KindPipeline, ev.Kind)
	}

	limited, err := store.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestConcurrentAppends(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Append(ctx, KindPipeline, StatusOK, map[string]int{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	evs, err := store.List(ctx, KindPipeline, writers*2)
	require.NoError(t, err)
	assert.Len(t, evs, writers)

	// IDs are store-assigned and strictly increasing.
	for i := 1; i < len(evs); i++ {
		assert.Greater(t, evs[i-1].ID, evs[i].ID)
	}
}

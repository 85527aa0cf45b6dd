package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageDefault(t *testing.T) {
	storage := NewMemoryStorage()
	assert.NotNil(t, storage, "Expected storage to be created")
}

func TestMemoryStoragePrune(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		_, err := store.Save(ctx, newTestRecord("in.txt", base.Add(time.Duration(i)*time.Minute), "a@b.co"))
		require.NoError(t, err)
	}

	removed, err := store.Prune(ctx, time.Time{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	summaries, err := store.List(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Save(ctx, newTestRecord("in.txt", time.Now(), "a@b.co"))
			assert.NoError(t, err)
			_, err = store.List(ctx, 20)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	summaries, err := store.List(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, summaries, 8)
}

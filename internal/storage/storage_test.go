// internal/storage/storage_test.go
package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "metrics.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, []byte(`{"running":true}`)))
	require.NoError(t, store.Save(ctx, []byte(`{"running":false}`)))

	data, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"running":false}`, string(data))

	// временные файлы не остаются рядом с состоянием
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "metrics.json"))
	require.NoError(t, err)

	docs := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`}
	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc string) {
			defer wg.Done()
			assert.NoError(t, store.Save(ctx, []byte(doc)))
		}(doc)
	}
	wg.Wait()

	data, found, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, docs, string(data))
}

func TestNewFileStoreEmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "flywheel:test:" + time.Now().Format("150405.000000")

	store, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Key: key})
	require.NoError(t, err)
	defer store.Close()
	defer store.client.Del(ctx, key)

	_, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, []byte(`{"running":true}`)))
	data, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"running":true}`, string(data))
}

func TestJournalAppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	header := []string{"time", "swap_tx"}

	j, err := NewJournal(path, header, time.Hour, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.WriteRecord([]string{"t1", "sig1"}))
	require.NoError(t, j.Sync())
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
	assert.Error(t, j.WriteRecord([]string{"t", "s"}))

	j, err = NewJournal(path, header, time.Hour, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.WriteRecord([]string{"t2", "sig2"}))
	records, flushes := j.GetStats()
	assert.Equal(t, uint64(1), records)
	assert.Zero(t, flushes)
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{header, {"t1", "sig1"}, {"t2", "sig2"}}, rows)
}

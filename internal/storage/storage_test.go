package storage

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/linksigner/internal/model"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	rec := &model.FileRecord{ID: "f1", Name: "report.pdf", Key: "k1"}
	store.Save(rec)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.Get("f1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Name)

	got.Name = "changed"
	again, err := store.Get("f1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", again.Name)

	store.Delete("f1")
	_, err = store.Get("f1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "blob1", strings.NewReader("hello"), 5, "text/plain"))

	rc, err := store.Open(ctx, "blob1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, "blob1"))
	require.NoError(t, store.Delete(ctx, "blob1"))

	_, err = store.Open(ctx, "blob1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStoreRejectsPathKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../escape", `a\b`} {
		assert.Error(t, store.Put(ctx, key, strings.NewReader("x"), 1, ""), key)
	}
}

func TestDiskStoreStopsOnCancelledContext(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Put(ctx, "blob", strings.NewReader("data"), 4, "")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.Open(context.Background(), "blob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkLog(t *testing.T) {
	ctx := context.Background()
	log := NewLinkLog()
	base := time.Unix(1700000000, 0).UTC()

	keys := []string{"file", "expires"}
	require.NoError(t, log.Record(ctx, model.LinkRecord{ID: "a", Route: "/download", SignedKeys: keys, IssuedAt: base}))
	require.NoError(t, log.Record(ctx, model.LinkRecord{ID: "b", Route: "/download", IssuedAt: base.Add(time.Minute)}))
	require.NoError(t, log.Record(ctx, model.LinkRecord{ID: "c", Route: "/other", IssuedAt: base}))
	keys[0] = "mutated"

	got, err := log.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"file", "expires"}, got.SignedKeys)

	_, err = log.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := log.List(ctx, "/download")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)

	all, err := log.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLinkLogConcurrent(t *testing.T) {
	ctx := context.Background()
	log := NewLinkLog()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = log.Record(ctx, model.LinkRecord{ID: string(rune('A' + i)), Route: "/r"})
			_, _ = log.List(ctx, "/r")
		}(i)
	}
	wg.Wait()

	list, err := log.List(ctx, "/r")
	require.NoError(t, err)
	assert.Len(t, list, 50)
}

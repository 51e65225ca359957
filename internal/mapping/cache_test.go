package mapping

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/clock/system"
	"github.com/JakeFAU/collection-ingest/internal/id/uuid"
	"github.com/JakeFAU/collection-ingest/internal/storage/memory"
)

type countingStore struct {
	catalog.CollectionStore
	reads atomic.Int32
}

func (c *countingStore) GetFieldMapping(ctx context.Context, id int64) (*catalog.FieldMapping, error) {
	c.reads.Add(1)
	return c.CollectionStore.GetFieldMapping(ctx, id)
}

func newCacheFixture(t *testing.T) (*Cache, *countingStore, *system.Frozen) {
	t.Helper()
	clock := system.NewFrozen(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	backing := memory.NewCatalogStore(clock, uuid.New())
	backing.AddCollection(catalog.Collection{
		ID:           1,
		Name:         "Books",
		FieldMapping: &catalog.FieldMapping{Mapping: map[string]string{"title": "제목"}},
	})
	counting := &countingStore{CollectionStore: backing}
	return NewCache(counting, clock, time.Minute), counting, clock
}

func TestCacheServesRepeatedReads(t *testing.T) {
	t.Parallel()

	cache, counting, _ := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	first.Mapping["title"] = "mutated"

	second, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "제목", second.Mapping["title"])
	require.EqualValues(t, 1, counting.reads.Load())
	require.Equal(t, 1, cache.Len())
}

func TestCacheExpires(t *testing.T) {
	t.Parallel()

	cache, counting, clock := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, counting.reads.Load())
}

func TestCacheInvalidatesOnWrite(t *testing.T) {
	t.Parallel()

	cache, _, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, cache.SaveFieldMapping(ctx, 1, catalog.FieldMapping{
		Mapping:        map[string]string{"author": "저자"},
		IgnoreUnmapped: true,
	}))
	fm, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"author": "저자"}, fm.Mapping)
	require.True(t, fm.IgnoreUnmapped)

	require.NoError(t, cache.DeleteFieldMapping(ctx, 1))
	fm, err = cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, fm)
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	cache, counting, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.GetFieldMapping(ctx, 99)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = cache.GetFieldMapping(ctx, 99)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.EqualValues(t, 2, counting.reads.Load())
	require.Zero(t, cache.Len())

	require.ErrorIs(t, cache.SaveFieldMapping(ctx, 99, catalog.FieldMapping{}), catalog.ErrNotFound)
}

func TestCacheConcurrentReaders(t *testing.T) {
	t.Parallel()

	cache, _, _ := newCacheFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fm, err := cache.GetFieldMapping(ctx, 1)
			if err == nil {
				fm.Mapping["x"] = "y"
			}
		}()
	}
	wg.Wait()

	fm, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"title": "제목"}, fm.Mapping)
}

// gatedStore holds the first mapping read until release is closed.
type gatedStore struct {
	catalog.CollectionStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) GetFieldMapping(ctx context.Context, id int64) (*catalog.FieldMapping, error) {
	fm, err := g.CollectionStore.GetFieldMapping(ctx, id)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return fm, err
}

func TestCacheDropsLoadRacingWrite(t *testing.T) {
	t.Parallel()

	clock := system.NewFrozen(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	backing := memory.NewCatalogStore(clock, uuid.New())
	backing.AddCollection(catalog.Collection{
		ID:           1,
		FieldMapping: &catalog.FieldMapping{Mapping: map[string]string{"title": "OLD"}},
	})
	gated := &gatedStore{CollectionStore: backing, started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCache(gated, clock, time.Minute)
	ctx := context.Background()

	done := make(chan *catalog.FieldMapping, 1)
	go func() {
		fm, err := cache.GetFieldMapping(ctx, 1)
		if err != nil {
			fm = nil
		}
		done <- fm
	}()
	<-gated.started

	require.NoError(t, cache.SaveFieldMapping(ctx, 1, catalog.FieldMapping{Mapping: map[string]string{"title": "NEW"}}))
	close(gated.release)
	stale := <-done
	require.NotNil(t, stale)
	require.Equal(t, "OLD", stale.Mapping["title"])

	fm, err := cache.GetFieldMapping(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "NEW", fm.Mapping["title"])
}

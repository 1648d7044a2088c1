package keyed

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/diskcache/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts Opens and holds them until release is closed.
type countingStore struct {
	*blobstore.MemoryStore
	opens   atomic.Int32
	release chan struct{}
}

func (s *countingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.opens.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.MemoryStore.Open(ctx, name)
}

// downloadingStore serves whole blobs through DownloadTo.
type downloadingStore struct {
	*blobstore.MemoryStore
	downloads atomic.Int32
}

func (s *downloadingStore) DownloadTo(ctx context.Context, name string, w io.WriterAt) (int64, error) {
	s.downloads.Add(1)
	b, err := s.MemoryStore.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	rc, err := blobstore.NewReader(ctx, b)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, err
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestLoader_Fetch(t *testing.T) {
	store := &countingStore{MemoryStore: blobstore.NewMemoryStore()}
	store.Put("images/a.png", []byte("png bytes"))
	m := newTestManager(t)
	l := NewLoader(m, store)
	ctx := context.Background()

	path, err := l.Fetch(ctx, "images/a.png")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	path2, err := l.Fetch(ctx, "images/a.png")
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, int32(1), store.opens.Load(), "second fetch is a cache hit")

	_, err = l.Fetch(ctx, "images/missing.png")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestLoader_FetchDeduplicates(t *testing.T) {
	store := &countingStore{
		MemoryStore: blobstore.NewMemoryStore(),
		release:     make(chan struct{}),
	}
	store.Put("big", []byte(strings.Repeat("x", 4096)))
	m := newTestManager(t)
	l := NewLoader(m, store)

	const n = 8
	paths := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = l.Fetch(context.Background(), "big")
		}()
	}

	require.Eventually(t, func() bool { return store.opens.Load() == 1 }, testTimeout, testTick)
	close(store.release)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.Equal(t, int32(1), store.opens.Load())
}

func TestLoader_FetchOutlivesCanceledCaller(t *testing.T) {
	store := &countingStore{
		MemoryStore: blobstore.NewMemoryStore(),
		release:     make(chan struct{}),
	}
	store.Put("blob", []byte("shared"))
	m := newTestManager(t)
	l := NewLoader(m, store)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Fetch(ctx, "blob")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return store.opens.Load() == 1 }, testTimeout, testTick)

	type result struct {
		path string
		err  error
	}
	second := make(chan result, 1)
	go func() {
		path, err := l.Fetch(context.Background(), "blob")
		second <- result{path, err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(testTimeout):
		t.Fatal("canceled fetch did not return")
	}

	close(store.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		data, err := os.ReadFile(res.path)
		require.NoError(t, err)
		assert.Equal(t, "shared", string(data))
	case <-time.After(testTimeout):
		t.Fatal("fetch did not return")
	}
	assert.Equal(t, int32(1), store.opens.Load())
}

func TestLoader_LoadTimeout(t *testing.T) {
	store := &countingStore{
		MemoryStore: blobstore.NewMemoryStore(),
		release:     make(chan struct{}),
	}
	store.Put("blob", []byte("never"))
	m := newTestManager(t)
	l := NewLoader(m, store, WithLoadTimeout(20*time.Millisecond))

	_, err := l.Fetch(context.Background(), "blob")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := m.GetCacheFile("blob")
	assert.False(t, ok)
}

func TestLoader_FetchNotCached(t *testing.T) {
	store := blobstore.NewMemoryStore()
	store.Put("id", []byte("v"))
	m := newTestManager(t)
	l := NewLoader(m, store)

	ed, err := m.Cache().Edit(Key("id"))
	require.NoError(t, err)
	require.NotNil(t, ed)
	defer ed.AbortUnlessCommitted()

	_, err = l.Fetch(context.Background(), "id")
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestLoader_UsesDownloader(t *testing.T) {
	store := &downloadingStore{MemoryStore: blobstore.NewMemoryStore()}
	store.Put("obj", []byte("downloaded"))
	m := newTestManager(t)
	l := NewLoader(m, store)

	_, err := l.Fetch(context.Background(), "obj")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.downloads.Load())
	assert.Equal(t, "downloaded", readValue(t, m, "obj"))
}

func TestLoader_Prefetch(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		store.Put(id, []byte("value "+id))
	}
	m := newTestManager(t)
	l := NewLoader(m, store)

	require.NoError(t, l.Prefetch(context.Background(), ids, 2))
	for _, id := range ids {
		assert.Equal(t, "value "+id, readValue(t, m, id))
	}

	err := l.Prefetch(context.Background(), []string{"a", "missing"}, 0)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

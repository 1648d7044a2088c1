package keyed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/diskcache/blobstore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNotCached is returned by Fetch when the blob was read but could not be
// stored, for example because another writer holds the key.
var ErrNotCached = errors.New("value could not be cached")

// DefaultLoadTimeout bounds one shared read from the store.
const DefaultLoadTimeout = 10 * time.Minute

// Loader fills a Manager from a BlobStore on demand.
type Loader struct {
	manager *Manager
	store   blobstore.BlobStore
	timeout time.Duration
	group   singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoadTimeout bounds each shared read from the store. Zero or less means
// no bound. Default is DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// NewLoader creates a Loader that reads missing values from store.
// Blob names are the identifiers passed to Fetch.
func NewLoader(m *Manager, store blobstore.BlobStore, optFns ...LoaderOption) *Loader {
	l := &Loader{manager: m, store: store, timeout: DefaultLoadTimeout}
	for _, fn := range optFns {
		fn(l)
	}
	return l
}

// Fetch returns the path of the cached file for id, reading the blob named id
// from the store on a miss. Concurrent fetches of the same id share one read.
//
// The shared read does not belong to any one caller: canceling ctx makes this
// Fetch return ctx.Err() but leaves the read running for the other callers.
// The read is bounded by the load timeout instead.
func (l *Loader) Fetch(ctx context.Context, id string) (string, error) {
	if path, ok := l.manager.GetCacheFile(id); ok {
		return path, nil
	}

	ch := l.group.DoChan(Key(id), func() (any, error) {
		// A fetch that finished just before this one joined the group.
		if path, ok := l.manager.GetCacheFile(id); ok {
			return path, nil
		}

		lctx := context.WithoutCancel(ctx)
		if l.timeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(lctx, l.timeout)
			defer cancel()
		}
		if err := l.load(lctx, id); err != nil {
			return "", err
		}
		path, ok := l.manager.GetCacheFile(id)
		if !ok {
			return "", ErrNotCached
		}
		return path, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (l *Loader) load(ctx context.Context, id string) error {
	blob, err := l.store.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("keyed: open blob %q: %w", id, err)
	}
	defer func() { _ = blob.Close() }()

	src, err := l.source(ctx, id, blob)
	if err != nil {
		return fmt.Errorf("keyed: read blob %q: %w", id, err)
	}
	if !l.manager.PutContext(ctx, id, src) {
		return ErrNotCached
	}
	return nil
}

// source returns a reader over the whole blob. Stores that can download in
// parallel fill a temporary file first.
func (l *Loader) source(ctx context.Context, id string, blob blobstore.Blob) (io.ReadCloser, error) {
	d, ok := l.store.(blobstore.Downloader)
	if !ok || blob.Size() == 0 {
		return blobstore.NewReader(ctx, blob)
	}

	tmp, err := os.CreateTemp("", "diskcache-fetch-*")
	if err != nil {
		return nil, err
	}
	src := &tempFile{File: tmp}

	if _, err := d.DownloadTo(ctx, id, tmp); err != nil {
		_ = src.Close()
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		_ = src.Close()
		return nil, err
	}
	return src, nil
}

// tempFile deletes itself on Close.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	return errors.Join(t.File.Close(), os.Remove(t.Name()))
}

// Prefetch fetches ids with at most parallelism concurrent reads and returns
// the first error. parallelism <= 0 means no limit.
func (l *Loader) Prefetch(ctx context.Context, ids []string, parallelism int) error {
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, id := range ids {
		g.Go(func() error {
			_, err := l.Fetch(gctx, id)
			return err
		})
	}
	return g.Wait()
}

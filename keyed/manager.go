package keyed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/diskcache"
	"github.com/hupe1980/diskcache/codec"
	"github.com/hupe1980/diskcache/internal/resource"
)

// Config identifies a cache directory and how it is opened.
type Config struct {
	Dir        string
	AppVersion int
	MaxSize    int64
}

// Manager stores values under arbitrary identifiers.
//
// Identifiers are hashed with Key. Put, GetCacheFile and Remove report
// failures as false and log them; they never return errors.
//
// A Manager is a handle. Handles returned for the same directory by a Registry
// share one cache; closing a handle releases only that handle, and closing it
// again is a no-op. Every method of a closed handle fails.
type Manager struct {
	*shared
	closed atomic.Bool
}

// shared is the state behind every handle of one directory.
type shared struct {
	dir      string // absolute
	cache    *diskcache.Cache
	codec    codec.Codec
	rc       *resource.Controller
	logger   *diskcache.Logger
	registry *Registry // nil for New
}

// New opens a Manager that is not shared through a Registry. It fails with
// ErrDirectoryInUse while any Manager of this process holds cfg.Dir. Use Open
// to share one cache between holders.
func New(cfg Config, optFns ...Option) (*Manager, error) {
	abs, err := absDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	cfg.Dir = abs

	if err := dirs.claim(abs); err != nil {
		return nil, err
	}
	sh, err := openShared(cfg, applyOptions(optFns))
	if err != nil {
		dirs.release(abs)
		return nil, err
	}
	return &Manager{shared: sh}, nil
}

func openShared(cfg Config, opts options) (*shared, error) {
	cacheOpts := append([]diskcache.Option{diskcache.WithLogger(opts.logger)}, opts.cacheOptions...)

	c, err := diskcache.Open(cfg.Dir, cfg.AppVersion, cfg.MaxSize, cacheOpts...)
	if err != nil {
		return nil, err
	}

	var rc *resource.Controller
	if opts.limits != (resource.Config{}) {
		rc = resource.NewController(opts.limits)
	}

	return &shared{
		dir:    cfg.Dir,
		cache:  c,
		codec:  opts.codec,
		rc:     rc,
		logger: opts.logger.WithDir(cfg.Dir),
	}, nil
}

// close closes the cache and gives the directory back.
func (sh *shared) close() error {
	defer dirs.release(sh.dir)
	if err := sh.cache.Close(); err != nil {
		return fmt.Errorf("keyed: close: %w", err)
	}
	return nil
}

// Put stores the content of src under id and always closes src.
//
// It returns false when another write of id is in progress or when storing
// fails; a failed write leaves any previous value in place.
func (m *Manager) Put(id string, src io.ReadCloser) bool {
	return m.PutContext(context.Background(), id, src)
}

// PutContext is Put with a context that bounds waiting for write slots and
// rate limits.
func (m *Manager) PutContext(ctx context.Context, id string, src io.ReadCloser) bool {
	return m.put(ctx, id, src, func() error { return m.rc.AcquireWriter(ctx) })
}

// TryPut is Put without waiting for a write slot: it returns false at once
// when WithWriteLimits is set and every slot is busy.
func (m *Manager) TryPut(id string, src io.ReadCloser) bool {
	return m.put(context.Background(), id, src, func() error {
		if !m.rc.TryAcquireWriter() {
			return errWritersBusy
		}
		return nil
	})
}

var errWritersBusy = errors.New("all write slots busy")

func (m *Manager) put(ctx context.Context, id string, src io.ReadCloser, acquire func() error) bool {
	defer func() { _ = src.Close() }()

	key := Key(id)
	if m.closed.Load() {
		m.logger.WarnContext(ctx, "put failed", "id", id, "key", key, "error", diskcache.ErrClosed)
		return false
	}
	if err := acquire(); err != nil {
		m.logger.DebugContext(ctx, "put skipped, no write slot", "id", id, "key", key, "error", err)
		return false
	}
	defer m.rc.ReleaseWriter()

	ed, err := m.cache.Edit(key)
	if err != nil {
		m.logger.WarnContext(ctx, "put failed", "id", id, "key", key, "error", err)
		return false
	}
	if ed == nil {
		m.logger.DebugContext(ctx, "put skipped, write in progress", "id", id, "key", key)
		return false
	}
	defer ed.AbortUnlessCommitted()

	if err := m.write(ctx, ed, src); err != nil {
		m.logger.WarnContext(ctx, "put failed", "id", id, "key", key, "error", err)
		return false
	}
	if err := ed.Commit(); err != nil {
		m.logger.WarnContext(ctx, "put commit failed", "id", id, "key", key, "error", err)
		return false
	}
	return true
}

func (m *Manager) write(ctx context.Context, ed *diskcache.Editor, src io.Reader) (err error) {
	f, err := ed.Create()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	enc, err := m.codec.NewWriter(resource.NewRateLimitedWriter(ctx, f, m.rc))
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// GetCacheFile returns the path of the stored file for id. The file holds the
// encoded bytes; use Open to read the decoded value.
func (m *Manager) GetCacheFile(id string) (string, bool) {
	if m.closed.Load() {
		return "", false
	}
	path, ok, err := m.cache.Get(Key(id))
	if err != nil {
		m.logger.Warn("get failed", "id", id, "error", err)
		return "", false
	}
	return path, ok
}

// Open returns a reader over the decoded value stored for id.
func (m *Manager) Open(id string) (io.ReadCloser, bool) {
	if m.closed.Load() {
		return nil, false
	}
	f, ok, err := m.cache.OpenValue(Key(id))
	if err != nil {
		m.logger.Warn("open failed", "id", id, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	r, err := m.codec.NewReader(f)
	if err != nil {
		_ = f.Close()
		m.logger.Warn("open failed", "id", id, "codec", m.codec.Name(), "error", err)
		return nil, false
	}
	return &decodedFile{ReadCloser: r, f: f}, true
}

type decodedFile struct {
	io.ReadCloser
	f io.Closer
}

func (d *decodedFile) Close() error {
	return errors.Join(d.ReadCloser.Close(), d.f.Close())
}

// Remove deletes the value stored for id. It returns false if there is none
// or it is being written.
func (m *Manager) Remove(id string) bool {
	if m.closed.Load() {
		return false
	}
	ok, err := m.cache.Remove(Key(id))
	if err != nil {
		m.logger.Warn("remove failed", "id", id, "error", err)
		return false
	}
	return ok
}

// RemoveAll removes every id and returns how many values were removed.
func (m *Manager) RemoveAll(ids []string) int {
	n := 0
	for _, id := range ids {
		if m.Remove(id) {
			n++
		}
	}
	return n
}

// Cache returns the underlying cache.
func (m *Manager) Cache() *diskcache.Cache {
	return m.cache
}

// Close releases the handle. The cache is closed once every handle of its
// directory is closed. Closing a closed handle returns nil.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.registry != nil {
		return m.registry.release(m.shared)
	}
	return m.shared.close()
}

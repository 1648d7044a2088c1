package keyed

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hupe1980/diskcache"
)

var (
	// ErrConfigMismatch is returned when a directory that is already open is
	// opened again with a different app version or size budget.
	ErrConfigMismatch = errors.New("cache directory already open with a different configuration")

	// ErrDirectoryInUse is returned when a directory is already held by a
	// Manager of this process that cannot be shared: one opened with New, or
	// one handed out by a different Registry.
	ErrDirectoryInUse = errors.New("cache directory already in use")
)

// dirSet is the process-wide set of directories with a live cache.
type dirSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var dirs = &dirSet{held: make(map[string]struct{})}

func (s *dirSet) claim(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.held[dir]; ok {
		return fmt.Errorf("%w: %s", ErrDirectoryInUse, dir)
	}
	s.held[dir] = struct{}{}
	return nil
}

func (s *dirSet) release(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, dir)
}

func absDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: empty directory", diskcache.ErrInvalidArgument)
	}
	return filepath.Abs(dir)
}

// Registry hands out Manager handles that share one cache per directory.
//
// Two Caches on the same directory would corrupt each other's journal, so
// every Open of a directory shares one cache. Each Open returns its own
// handle and must be paired with a Close of that handle. A directory belongs
// to at most one Registry (or one New) at a time in the process.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registration
}

type registration struct {
	shared *shared
	cfg    Config
	refs   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

var defaultRegistry = NewRegistry()

// Open returns a Manager handle for cfg.Dir from the process-wide registry.
func Open(cfg Config, optFns ...Option) (*Manager, error) {
	return defaultRegistry.Open(cfg, optFns...)
}

// Open returns a new handle on the live cache for cfg.Dir, opening the cache if
// needed. Options are applied only by the Open that opens the cache.
func (r *Registry) Open(cfg Config, optFns ...Option) (*Manager, error) {
	abs, err := absDir(cfg.Dir)
	if err != nil {
		return nil, err
	}
	cfg.Dir = abs

	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.entries[abs]; ok {
		if reg.cfg != cfg {
			return nil, fmt.Errorf("%w: %s (app version %d, max size %d)",
				ErrConfigMismatch, abs, reg.cfg.AppVersion, reg.cfg.MaxSize)
		}
		reg.refs++
		return &Manager{shared: reg.shared}, nil
	}

	if err := dirs.claim(abs); err != nil {
		return nil, err
	}
	sh, err := openShared(cfg, applyOptions(optFns))
	if err != nil {
		dirs.release(abs)
		return nil, err
	}
	sh.registry = r
	r.entries[abs] = &registration{shared: sh, cfg: cfg, refs: 1}
	return &Manager{shared: sh}, nil
}

// Len returns the number of open directories.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) release(sh *shared) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[sh.dir]
	if !ok || reg.shared != sh {
		return diskcache.ErrClosed
	}
	reg.refs--
	if reg.refs > 0 {
		return nil
	}
	delete(r.entries, sh.dir)

	// Closed under r.mu so a concurrent Open cannot reopen the directory
	// while this cache still owns the journal.
	return sh.close()
}

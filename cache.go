package diskcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/diskcache/internal/fs"
	"github.com/hupe1980/diskcache/journal"
)

// Cache is a size-bounded, journaled cache of files in a single directory.
//
// Each key maps to at most one committed value stored as the file <dir>/<key>.
// Writes go through an Editor to <dir>/<key>.tmp and become visible on Commit.
// All methods are safe for concurrent use.
type Cache struct {
	mu sync.Mutex

	dir        string
	appVersion int
	maxSize    int64
	size       int64

	entries      *entryTable
	journal      *journal.Writer
	redundantOps int
	closed       bool

	fsys             fs.FileSystem
	durability       Durability
	rebuildThreshold int
	logger           *Logger
	metrics          MetricsCollector
	compactor        *compactor

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Stats is a point-in-time snapshot of a cache.
type Stats struct {
	Dir          string
	Size         int64
	MaxSize      int64
	Entries      int // readable entries
	Editing      int // entries with a live writer
	RedundantOps int
	Hits         int64
	Misses       int64
	Evictions    int64
}

// Open opens the cache in dir, creating the directory if needed.
//
// The journal is replayed to rebuild the index. A journal written with a
// different appVersion, or one that cannot be read, wipes the directory and
// starts an empty cache. maxSize is the byte budget and must be positive.
func Open(dir string, appVersion int, maxSize int64, optFns ...Option) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty directory", ErrInvalidArgument)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: maxSize must be positive, got %d", ErrInvalidArgument, maxSize)
	}

	opts := applyOptions(optFns)
	c := &Cache{
		dir:              dir,
		appVersion:       appVersion,
		maxSize:          maxSize,
		entries:          newEntryTable(),
		fsys:             opts.fileSystem,
		durability:       opts.durability,
		rebuildThreshold: opts.rebuildThreshold,
		logger:           opts.logger.WithDir(dir),
		metrics:          opts.metricsCollector,
	}
	c.compactor = newCompactor(opts.idleTimeout, c.cleanup)

	ctx := context.Background()
	start := time.Now()
	reset, err := c.recover(ctx)
	if err != nil {
		c.logger.LogRecovery(ctx, 0, 0, time.Since(start), err)
		c.compactor.close()
		return nil, err
	}
	c.logger.LogRecovery(ctx, c.entries.len(), c.redundantOps, time.Since(start), nil)
	c.metrics.RecordRecovery(c.entries.len(), c.redundantOps, reset)

	return c, nil
}

func (c *Cache) journalOptions() func(o *journal.Options) {
	return func(o *journal.Options) {
		o.FileSystem = c.fsys
		o.DurabilityMode = c.durability
	}
}

// recover restores the index from the journal, resetting the directory when the
// journal is unusable. It reports whether a reset happened.
func (c *Cache) recover(ctx context.Context) (bool, error) {
	if err := journal.ReconcileBackup(c.dir, c.journalOptions()); err != nil {
		return false, fmt.Errorf("failed to reconcile journal backup: %w", err)
	}

	exists, err := fs.Exists(c.fsys, c.journalPath())
	if err != nil {
		return false, fmt.Errorf("failed to stat journal: %w", err)
	}

	reset := false
	if exists {
		err := c.readJournal(ctx)
		if err == nil {
			return false, nil
		}

		c.logger.LogReset(ctx, err)
		reset = true
		if c.journal != nil {
			_ = c.journal.Close()
			c.journal = nil
		}
		c.entries = newEntryTable()
		c.size = 0
		c.redundantOps = 0
		if err := c.fsys.RemoveAll(c.dir); err != nil {
			return reset, fmt.Errorf("failed to reset cache directory: %w", err)
		}
	}

	if err := c.fsys.MkdirAll(c.dir, 0o755); err != nil {
		return reset, fmt.Errorf("failed to create cache directory: %w", err)
	}
	w, err := journal.Create(c.dir, c.appVersion, c.journalOptions())
	if err != nil {
		return reset, err
	}
	c.journal = w
	return reset, nil
}

// readJournal replays the journal into the index and opens it for appending.
func (c *Cache) readJournal(ctx context.Context) error {
	res, err := journal.Replay(c.journalPath(), c.appVersion, c.apply, c.journalOptions())
	if err != nil {
		return err
	}
	c.redundantOps = res.Lines - c.entries.len()

	if err := c.processJournal(); err != nil {
		return err
	}

	if res.Torn {
		return c.rebuildJournal(ctx)
	}
	w, err := journal.Open(c.journalPath(), c.journalOptions())
	if err != nil {
		return err
	}
	c.journal = w
	return nil
}

// apply replays one record into the index.
func (c *Cache) apply(rec journal.Record) {
	if rec.Op == journal.OpRemove {
		if e, ok := c.entries.lookup(rec.Key); ok {
			c.entries.remove(e)
		}
		return
	}

	e, _ := c.entries.getOrCreate(rec.Key)
	switch rec.Op {
	case journal.OpClean:
		e.readable = true
		e.length = rec.Length
		e.interrupted = false
	case journal.OpDirty:
		e.interrupted = true
	}
}

// processJournal computes the initial size and drops entries whose write was
// interrupted, deleting their files.
func (c *Cache) processJournal() error {
	if err := fs.RemoveIfExists(c.fsys, filepath.Join(c.dir, journal.TempFileName)); err != nil {
		return fmt.Errorf("failed to delete stale journal: %w", err)
	}

	c.size = 0
	for e := range c.entries.oldestFirst() {
		if !e.interrupted {
			c.size += e.length
			continue
		}
		if err := fs.RemoveIfExists(c.fsys, c.cleanPath(e.key)); err != nil {
			return fmt.Errorf("failed to delete interrupted value %q: %w", e.key, err)
		}
		if err := fs.RemoveIfExists(c.fsys, c.dirtyPath(e.key)); err != nil {
			return fmt.Errorf("failed to delete interrupted value %q: %w", e.key, err)
		}
		c.entries.remove(e)
	}
	return nil
}

// rebuildJournal replaces the journal with one line per entry.
// Callers must hold c.mu.
func (c *Cache) rebuildJournal(ctx context.Context) error {
	start := time.Now()

	records := make([]journal.Record, 0, c.entries.len())
	for e := range c.entries.oldestFirst() {
		switch {
		case e.editor != nil:
			records = append(records, journal.Dirty(e.key))
		case e.readable:
			records = append(records, journal.Clean(e.key, e.length))
		default:
			// Touched by a READ line but never committed.
			c.entries.remove(e)
		}
	}

	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			c.logger.WarnContext(ctx, "failed to close journal before rebuild", "error", err)
		}
		c.journal = nil
	}

	w, err := journal.Rebuild(c.dir, c.appVersion, records, c.journalOptions())
	c.metrics.RecordRebuild(time.Since(start), len(records), err)
	c.logger.LogRebuild(ctx, len(records), time.Since(start), err)
	if err != nil {
		// Keep appending to whatever journal is in place.
		if reopened, oerr := journal.Open(c.journalPath(), c.journalOptions()); oerr == nil {
			c.journal = reopened
		}
		return fmt.Errorf("failed to rebuild journal: %w", err)
	}

	c.journal = w
	c.redundantOps = 0
	return nil
}

// rebuildDue reports whether the journal holds enough redundant lines to be
// worth rewriting. Callers must hold c.mu.
func (c *Cache) rebuildDue() bool {
	return c.redundantOps >= c.rebuildThreshold && c.redundantOps >= c.entries.len()
}

func (c *Cache) journalPath() string         { return filepath.Join(c.dir, journal.FileName) }
func (c *Cache) cleanPath(key string) string { return filepath.Join(c.dir, key) }
func (c *Cache) dirtyPath(key string) string { return filepath.Join(c.dir, key+".tmp") }

func (c *Cache) append(rec journal.Record) error {
	if c.journal == nil {
		return fmt.Errorf("journal unavailable after failed rebuild: %w", ErrClosed)
	}
	return c.journal.Append(rec)
}

// Edit returns an editor for key, or nil if another editor for key is in
// progress.
func (c *Cache) Edit(key string) (*Editor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if err := journal.ValidateKey(key); err != nil {
		return nil, err
	}

	e, created := c.entries.getOrCreate(key)
	if e.editor != nil {
		return nil, nil
	}

	ed := &Editor{cache: c, entry: e, started: time.Now()}
	e.editor = ed

	// The DIRTY line must reach the journal before any file is written, so an
	// interrupted write is cleaned up on the next Open.
	if err := c.append(journal.Dirty(key)); err != nil {
		e.editor = nil
		if created {
			c.entries.remove(e)
		}
		return nil, fmt.Errorf("failed to journal edit of %q: %w", key, err)
	}
	return ed, nil
}

// Get returns the path of the committed value for key.
//
// The returned file is not pinned: a later eviction or Remove may delete it
// while the caller still holds the path. ok is false when there is no readable
// value. A value whose file has gone missing is dropped from the index.
func (c *Cache) Get(key string) (path string, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

// OpenValue is Get followed by opening the value for reading. The file is
// opened through the cache's FileSystem before the lock is released, so an
// eviction cannot delete it in between. The caller must close it.
func (c *Cache) OpenValue(key string) (io.ReadCloser, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok, err := c.get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	f, err := c.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, true, nil
}

// get implements Get. Callers must hold c.mu.
func (c *Cache) get(key string) (string, bool, error) {
	if c.closed {
		return "", false, ErrClosed
	}
	if err := journal.ValidateKey(key); err != nil {
		return "", false, err
	}

	e, found := c.entries.lookup(key)
	if !found {
		c.recordMiss()
		return "", false, nil
	}
	c.entries.touch(e)
	if !e.readable {
		c.recordMiss()
		return "", false, nil
	}

	path := c.cleanPath(key)
	exists, err := fs.Exists(c.fsys, path)
	if err != nil {
		return "", false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !exists {
		c.recordMiss()
		return "", false, c.forget(e)
	}

	c.redundantOps++
	c.recordHit()
	if err := c.append(journal.Read(key)); err != nil {
		return "", false, err
	}
	if c.rebuildDue() {
		c.compactor.schedule()
	}
	return path, true, nil
}

// forget drops a readable entry whose value file disappeared behind the cache's
// back. Callers must hold c.mu.
//
// An entry with a live writer stays for that writer and nothing is journaled:
// its DIRTY record must stay unresolved so that recovery after a crash still
// deletes the dirty file. The writer's Commit or Abort resolves it.
func (c *Cache) forget(e *entry) error {
	c.size -= e.length
	e.length = 0
	e.readable = false
	c.logger.WarnContext(context.Background(), "cached value missing on disk", "key", e.key)
	if e.editor != nil {
		return nil
	}
	c.redundantOps++
	c.entries.remove(e)
	return c.append(journal.Remove(e.key))
}

func (c *Cache) recordHit() {
	c.hits.Add(1)
	c.metrics.RecordHit()
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	c.metrics.RecordMiss()
}

// Remove deletes the value for key. It returns false if key has no entry or is
// currently being written.
func (c *Cache) Remove(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}
	if err := journal.ValidateKey(key); err != nil {
		return false, err
	}

	e, ok := c.entries.lookup(key)
	if !ok || e.editor != nil {
		return false, nil
	}
	if err := c.removeEntry(e); err != nil {
		return false, err
	}
	c.metrics.RecordRemove()
	return true, nil
}

// removeEntry deletes the clean file of e and drops it from the index.
// Callers must hold c.mu and ensure e has no live writer.
func (c *Cache) removeEntry(e *entry) error {
	path := c.cleanPath(e.key)
	if err := fs.RemoveIfExists(c.fsys, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	c.size -= e.length
	c.redundantOps++
	c.entries.remove(e)

	if err := c.append(journal.Remove(e.key)); err != nil {
		return err
	}
	if c.rebuildDue() {
		c.compactor.schedule()
	}
	return nil
}

// completeEdit finalizes ed. On success the dirty file becomes the clean value;
// a missing dirty file turns the commit into an abort. A failed rename leaves
// the editor live. Callers must hold c.mu.
func (c *Cache) completeEdit(ed *Editor, success bool) error {
	e := ed.entry
	if e.editor != ed {
		panic("diskcache: editor is not bound to its entry")
	}

	dirty := c.dirtyPath(e.key)
	committed := int64(-1)
	if success {
		info, err := c.fsys.Stat(dirty)
		switch {
		case err == nil:
			if err := c.fsys.Rename(dirty, c.cleanPath(e.key)); err != nil {
				c.metrics.RecordCommit(0, time.Since(ed.started), err)
				return fmt.Errorf("failed to commit %q: %w", e.key, err)
			}
			committed = info.Size()
			c.size += committed - e.length
			e.length = committed
			e.readable = true
		case errors.Is(err, os.ErrNotExist):
			success = false
		default:
			return fmt.Errorf("failed to stat %s: %w", dirty, err)
		}
	}

	if !success {
		if err := fs.RemoveIfExists(c.fsys, dirty); err != nil {
			c.logger.WarnContext(context.Background(), "failed to delete aborted value", "key", e.key, "error", err)
		}
	}

	c.redundantOps++
	e.editor = nil
	ed.done = true

	var rec journal.Record
	if e.readable {
		rec = journal.Clean(e.key, e.length)
	} else {
		c.entries.remove(e)
		rec = journal.Remove(e.key)
	}
	err := c.append(rec)

	if success {
		c.metrics.RecordCommit(committed, time.Since(ed.started), err)
	} else {
		c.metrics.RecordAbort()
	}

	if c.size > c.maxSize || c.rebuildDue() {
		c.compactor.schedule()
	}
	return err
}

// finish is the locked entry point for Editor.Commit and Editor.Abort.
func (c *Cache) finish(ed *Editor, success bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ed.done {
		return ErrEditorDone
	}
	return c.completeEdit(ed, success)
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Size returns the bytes used by committed values.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// MaxSize returns the byte budget.
func (c *Cache) MaxSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSize
}

// SetMaxSize changes the byte budget. Shrinking it evicts in the background.
func (c *Cache) SetMaxSize(maxSize int64) error {
	if maxSize <= 0 {
		return fmt.Errorf("%w: maxSize must be positive, got %d", ErrInvalidArgument, maxSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.maxSize = maxSize
	c.compactor.schedule()
	return nil
}

// Len returns the number of readable entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for e := range c.entries.oldestFirst() {
		if e.readable {
			n++
		}
	}
	return n
}

// Keys returns the readable keys from least to most recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.entries.len())
	for e := range c.entries.oldestFirst() {
		if e.readable {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Stats returns a snapshot of the cache state and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Dir:          c.dir,
		Size:         c.size,
		MaxSize:      c.maxSize,
		RedundantOps: c.redundantOps,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
	}
	for e := range c.entries.oldestFirst() {
		if e.readable {
			s.Entries++
		}
		if e.editor != nil {
			s.Editing++
		}
	}
	return s
}

// IsClosed reports whether Close has been called.
func (c *Cache) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Flush trims the cache to its budget and writes buffered journal lines.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.trimToSize(context.Background()); err != nil {
		return err
	}
	if c.journal == nil {
		return nil
	}
	return c.journal.Flush()
}

// Compact trims the cache to its budget and rewrites the journal with one line
// per entry, whether or not a rebuild is due.
func (c *Cache) Compact() error {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.trimToSize(ctx); err != nil {
		return err
	}
	return c.rebuildJournal(ctx)
}

// Close aborts in-progress edits, trims the cache to its budget and closes the
// journal. Close is idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	var errs []error
	var live []*Editor
	for e := range c.entries.oldestFirst() {
		if e.editor != nil {
			live = append(live, e.editor)
		}
	}
	for _, ed := range live {
		errs = append(errs, c.completeEdit(ed, false))
	}
	errs = append(errs, c.trimToSize(context.Background()))
	if c.journal != nil {
		errs = append(errs, c.journal.Close())
		c.journal = nil
	}
	c.closed = true
	c.mu.Unlock()

	// The cleanup task takes c.mu, so the worker is stopped outside of it.
	c.compactor.close()

	return errors.Join(errs...)
}

// Delete closes the cache and removes its directory with everything in it.
func (c *Cache) Delete() error {
	closeErr := c.Close()
	if err := c.fsys.RemoveAll(c.dir); err != nil {
		return errors.Join(closeErr, fmt.Errorf("failed to delete cache directory: %w", err))
	}
	return closeErr
}

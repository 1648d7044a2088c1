package diskcache

import (
	"io"
	"os"
	"time"
)

// Editor is an in-progress write of one key.
//
// Write the new value to the file returned by Create (or directly to Path),
// then call exactly one of Commit or Abort. The value becomes visible to Get
// only after Commit. An Editor is safe to finish from any goroutine.
type Editor struct {
	cache   *Cache
	entry   *entry
	started time.Time
	done    bool // guarded by cache.mu
}

// Key returns the key being written.
func (ed *Editor) Key() string { return ed.entry.key }

// Path returns the path of the dirty file that Commit publishes.
func (ed *Editor) Path() string { return ed.cache.dirtyPath(ed.entry.key) }

// Create creates or truncates the dirty file and returns it for writing.
// The caller must close it before calling Commit.
func (ed *Editor) Create() (io.WriteCloser, error) {
	ed.cache.mu.Lock()
	done := ed.done
	ed.cache.mu.Unlock()
	if done {
		return nil, ErrEditorDone
	}
	return ed.cache.fsys.OpenFile(ed.Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// Commit publishes the dirty file as the value for the key.
//
// If the dirty file was never created, Commit behaves like Abort and returns
// nil. If publishing fails the editor stays live and may be aborted.
func (ed *Editor) Commit() error {
	return ed.cache.finish(ed, true)
}

// Abort discards the dirty file. A previously committed value stays readable.
func (ed *Editor) Abort() error {
	return ed.cache.finish(ed, false)
}

// AbortUnlessCommitted aborts the edit if it has not finished yet. It is meant
// to be deferred right after Edit.
func (ed *Editor) AbortUnlessCommitted() {
	_ = ed.Abort()
}

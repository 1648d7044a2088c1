// Package diskcache provides a size-bounded, journaled disk cache.
//
// A Cache stores one file per key in a single directory and keeps an
// append-only journal of every write, removal and read. On Open the journal is
// replayed to rebuild the in-memory index, so committed values survive process
// restarts and interrupted writes are cleaned up.
//
// # Quick Start
//
//	c, _ := diskcache.Open("./cache", 1, 64<<20)
//	defer c.Close()
//
//	ed, _ := c.Edit("thumbnail-42")
//	if ed != nil {
//	    defer ed.AbortUnlessCommitted()
//	    w, _ := ed.Create()
//	    _, _ = w.Write(data)
//	    _ = w.Close()
//	    _ = ed.Commit()
//	}
//
//	path, ok, _ := c.Get("thumbnail-42")
//
// # Keys
//
// Keys must match [a-z0-9_-]{1,64}. The name "journal" is reserved. The keyed
// package maps arbitrary identifiers to keys by hashing them.
//
// # Writers
//
// At most one Editor exists per key. Edit returns a nil Editor (and a nil
// error) while another write of the same key is in progress. Entries being
// written are never evicted.
//
// # Size Budget
//
// Size is the sum of the committed value lengths. When a commit pushes it past
// the budget, a background worker evicts the least recently used entries. The
// worker also rewrites the journal once it has accumulated enough redundant
// lines. Flush and Close trim synchronously.
//
// # Directory Layout
//
//	<dir>/journal        operation log
//	<dir>/journal.tmp    journal being rebuilt
//	<dir>/journal.bak    previous journal during a rebuild swap
//	<dir>/<key>          committed value
//	<dir>/<key>.tmp      value being written
//
// Opening a directory whose journal has a different application version, or
// whose journal cannot be read, deletes everything in it.
package diskcache

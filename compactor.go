package diskcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/diskcache/internal/worker"
)

// compactor runs cache cleanup on a background worker. Submissions are
// coalesced: while one cleanup is queued, further requests are dropped.
type compactor struct {
	queue   *worker.Queue
	pending atomic.Bool
	run     func()
}

func newCompactor(idleTimeout time.Duration, run func()) *compactor {
	return &compactor{
		queue: worker.NewQueue(idleTimeout),
		run:   run,
	}
}

// schedule requests a cleanup without waiting for it.
func (c *compactor) schedule() {
	if !c.pending.CompareAndSwap(false, true) {
		return
	}
	err := c.queue.Submit(func() {
		c.pending.Store(false)
		c.run()
	})
	if err != nil {
		c.pending.Store(false)
	}
}

// idle reports whether no cleanup is queued or running.
func (c *compactor) idle() bool { return c.queue.Idle() }

func (c *compactor) close() { c.queue.Close() }

// cleanup trims the cache to its budget and rebuilds the journal when due.
func (c *Cache) cleanup() {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if err := c.trimToSize(ctx); err != nil {
		c.logger.LogCompactionFailure(ctx, err)
	}
	if c.rebuildDue() {
		if err := c.rebuildJournal(ctx); err != nil {
			c.logger.LogCompactionFailure(ctx, err)
		}
	}
}

// trimToSize evicts least recently used entries until size fits the budget.
// Entries with a live writer are skipped. Callers must hold c.mu.
func (c *Cache) trimToSize(ctx context.Context) error {
	for c.size > c.maxSize {
		victim := c.entries.oldestEvictable()
		if victim == nil {
			return nil
		}
		bytes := victim.length
		if err := c.removeEntry(victim); err != nil {
			return err
		}
		c.evictions.Add(1)
		c.metrics.RecordEviction(bytes)
		c.logger.LogEviction(ctx, victim.key, bytes)
	}
	return nil
}

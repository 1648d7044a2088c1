package resource

import (
	"context"
	"io"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentWrites is the maximum number of values streamed into the
	// cache at the same time. If 0, unlimited.
	MaxConcurrentWrites int64

	// IOLimitBytesPerSec is the maximum write throughput into the cache.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller bounds concurrent writers and write throughput.
type Controller struct {
	// Concurrency
	writeSem *semaphore.Weighted // nil if unlimited

	// IO
	ioLimiter *rate.Limiter // nil if unlimited
	ioBurst   int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{}

	if cfg.MaxConcurrentWrites > 0 {
		c.writeSem = semaphore.NewWeighted(cfg.MaxConcurrentWrites)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioBurst = int(cfg.IOLimitBytesPerSec)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), c.ioBurst)
	}

	return c
}

// AcquireWriter reserves a writer slot, blocking while all slots are busy.
func (c *Controller) AcquireWriter(ctx context.Context) error {
	if c == nil || c.writeSem == nil {
		return nil
	}
	return c.writeSem.Acquire(ctx, 1)
}

// TryAcquireWriter reserves a writer slot without blocking.
func (c *Controller) TryAcquireWriter() bool {
	if c == nil || c.writeSem == nil {
		return true
	}
	return c.writeSem.TryAcquire(1)
}

// ReleaseWriter releases a writer slot.
func (c *Controller) ReleaseWriter() {
	if c == nil || c.writeSem == nil {
		return
	}
	c.writeSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than one second of budget are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioBurst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
// Returns true if tokens were acquired, false otherwise.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}

// RateLimitedWriter wraps an io.Writer with rate limiting.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

// NewRateLimitedWriter creates a new RateLimitedWriter.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{
		ctx: ctx,
		w:   w,
		rc:  rc,
	}
}

// Write writes p once the IO limit allows len(p) bytes. It only waits when
// the token bucket cannot cover p right away, and fails once ctx is done.
func (w *RateLimitedWriter) Write(p []byte) (n int, err error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	if !w.rc.TryAcquireIO(len(p)) {
		if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
			return 0, err
		}
	}
	return w.w.Write(p)
}

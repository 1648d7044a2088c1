// Package resource bounds the work of streaming values into a cache.
//
// A Controller limits two things:
//
//   - Concurrency: how many values are written at the same time (semaphore)
//   - IO: bytes per second written into the cache directory (token bucket)
//
// # Usage
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentWrites: 4,
//	    IOLimitBytesPerSec:  64 << 20, // 64MB/s
//	})
//
//	if err := rc.AcquireWriter(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWriter()
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource

package diskcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordHit is called when Get finds a readable value.
	RecordHit()

	// RecordMiss is called when Get finds nothing readable.
	RecordMiss()

	// RecordCommit is called after an editor commits.
	// bytes is the committed length, err is nil if successful.
	RecordCommit(bytes int64, duration time.Duration, err error)

	// RecordAbort is called after an editor is aborted, explicitly or because
	// its value file was never written.
	RecordAbort()

	// RecordRemove is called after an explicit remove deletes an entry.
	RecordRemove()

	// RecordEviction is called for each entry evicted to honor the size budget.
	RecordEviction(bytes int64)

	// RecordRebuild is called after each journal rebuild.
	RecordRebuild(duration time.Duration, entries int, err error)

	// RecordRecovery is called once per Open. reset is true when the journal
	// was unusable and the cache was wiped.
	RecordRecovery(entries, redundantOps int, reset bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordHit()                               {}
func (NoopMetricsCollector) RecordMiss()                              {}
func (NoopMetricsCollector) RecordCommit(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordAbort()                             {}
func (NoopMetricsCollector) RecordRemove()                            {}
func (NoopMetricsCollector) RecordEviction(int64)                     {}
func (NoopMetricsCollector) RecordRebuild(time.Duration, int, error)  {}
func (NoopMetricsCollector) RecordRecovery(int, int, bool)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Hits             atomic.Int64
	Misses           atomic.Int64
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	CommitBytes      atomic.Int64
	CommitTotalNanos atomic.Int64
	AbortCount       atomic.Int64
	RemoveCount      atomic.Int64
	EvictionCount    atomic.Int64
	EvictedBytes     atomic.Int64
	RebuildCount     atomic.Int64
	RebuildErrors    atomic.Int64
	RecoveryCount    atomic.Int64
	ResetCount       atomic.Int64
}

// RecordHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHit() { b.Hits.Add(1) }

// RecordMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMiss() { b.Misses.Add(1) }

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(bytes int64, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
		return
	}
	b.CommitBytes.Add(bytes)
}

// RecordAbort implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAbort() { b.AbortCount.Add(1) }

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove() { b.RemoveCount.Add(1) }

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(bytes int64) {
	b.EvictionCount.Add(1)
	b.EvictedBytes.Add(bytes)
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(_ time.Duration, _ int, err error) {
	b.RebuildCount.Add(1)
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(_, _ int, reset bool) {
	b.RecoveryCount.Add(1)
	if reset {
		b.ResetCount.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Hits:           b.Hits.Load(),
		Misses:         b.Misses.Load(),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		CommitBytes:    b.CommitBytes.Load(),
		CommitAvgNanos: b.getAvgCommitNanos(),
		AbortCount:     b.AbortCount.Load(),
		RemoveCount:    b.RemoveCount.Load(),
		EvictionCount:  b.EvictionCount.Load(),
		EvictedBytes:   b.EvictedBytes.Load(),
		RebuildCount:   b.RebuildCount.Load(),
		RebuildErrors:  b.RebuildErrors.Load(),
		RecoveryCount:  b.RecoveryCount.Load(),
		ResetCount:     b.ResetCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgCommitNanos() int64 {
	count := b.CommitCount.Load()
	if count == 0 {
		return 0
	}
	return b.CommitTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Hits           int64
	Misses         int64
	CommitCount    int64
	CommitErrors   int64
	CommitBytes    int64
	CommitAvgNanos int64
	AbortCount     int64
	RemoveCount    int64
	EvictionCount  int64
	EvictedBytes   int64
	RebuildCount   int64
	RebuildErrors  int64
	RecoveryCount  int64
	ResetCount     int64
}

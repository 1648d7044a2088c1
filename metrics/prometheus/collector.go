// Package prometheus exports diskcache metrics to Prometheus.
//
//	mc, err := prometheus.NewCollector(prom.DefaultRegisterer, "myapp")
//	if err != nil {
//	    return err
//	}
//	c, err := diskcache.Open(dir, 1, maxSize, diskcache.WithMetricsCollector(mc))
package prometheus

import (
	"time"

	"github.com/hupe1980/diskcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements diskcache.MetricsCollector with Prometheus metrics.
// One Collector may be shared by several caches.
type Collector struct {
	lookups       *prometheus.CounterVec
	commits       *prometheus.CounterVec
	commitBytes   prometheus.Counter
	commitLatency prometheus.Histogram
	aborts        prometheus.Counter
	removes       prometheus.Counter
	evictions     prometheus.Counter
	evictedBytes  prometheus.Counter
	rebuilds      *prometheus.CounterVec
	rebuildTime   prometheus.Histogram
	entries       prometheus.Gauge
	recoveries    *prometheus.CounterVec
}

var _ diskcache.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	const subsystem = "diskcache"

	c := &Collector{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "lookups_total",
			Help: "Get calls by result (hit, miss).",
		}, []string{"result"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "commits_total",
			Help: "Editor commits by status (ok, error).",
		}, []string{"status"}),
		commitBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "commit_bytes_total",
			Help: "Bytes published by successful commits.",
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "edit_duration_seconds",
			Help:    "Time from Edit to a successful Commit.",
			Buckets: prometheus.DefBuckets,
		}),
		aborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "aborts_total",
			Help: "Aborted edits.",
		}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "removes_total",
			Help: "Entries removed by Remove.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "evictions_total",
			Help: "Entries evicted to honor the size budget.",
		}),
		evictedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "evicted_bytes_total",
			Help: "Bytes freed by evictions.",
		}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "journal_rebuilds_total",
			Help: "Journal rebuilds by status (ok, error).",
		}, []string{"status"}),
		rebuildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "journal_rebuild_duration_seconds",
			Help:    "Duration of journal rebuilds.",
			Buckets: prometheus.DefBuckets,
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "journal_entries",
			Help: "Entries written by the last journal rebuild or recovery.",
		}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "recoveries_total",
			Help: "Cache opens by outcome (replayed, reset).",
		}, []string{"outcome"}),
	}

	for _, col := range []prometheus.Collector{
		c.lookups, c.commits, c.commitBytes, c.commitLatency, c.aborts, c.removes,
		c.evictions, c.evictedBytes, c.rebuilds, c.rebuildTime, c.entries, c.recoveries,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) RecordHit()  { c.lookups.WithLabelValues("hit").Inc() }
func (c *Collector) RecordMiss() { c.lookups.WithLabelValues("miss").Inc() }

func (c *Collector) RecordCommit(bytes int64, duration time.Duration, err error) {
	c.commits.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	c.commitBytes.Add(float64(bytes))
	c.commitLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordAbort()  { c.aborts.Inc() }
func (c *Collector) RecordRemove() { c.removes.Inc() }

func (c *Collector) RecordEviction(bytes int64) {
	c.evictions.Inc()
	c.evictedBytes.Add(float64(bytes))
}

func (c *Collector) RecordRebuild(duration time.Duration, entries int, err error) {
	c.rebuilds.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	c.rebuildTime.Observe(duration.Seconds())
	c.entries.Set(float64(entries))
}

func (c *Collector) RecordRecovery(entries, _ int, reset bool) {
	outcome := "replayed"
	if reset {
		outcome = "reset"
	}
	c.recoveries.WithLabelValues(outcome).Inc()
	c.entries.Set(float64(entries))
}

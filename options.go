package diskcache

import (
	"log/slog"
	"time"

	"github.com/hupe1980/diskcache/internal/fs"
	"github.com/hupe1980/diskcache/internal/worker"
	"github.com/hupe1980/diskcache/journal"
)

// DefaultRebuildThreshold is the number of redundant journal lines that makes a
// rebuild due (provided they also outnumber the live entries).
const DefaultRebuildThreshold = 2000

// Durability controls when journal appends are fsynced.
type Durability = journal.DurabilityMode

const (
	// DurabilityAsync hands resolving records to the OS without fsync.
	DurabilityAsync = journal.DurabilityAsync
	// DurabilitySync fsyncs after every DIRTY, CLEAN and REMOVE record.
	DurabilitySync = journal.DurabilitySync
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	fileSystem       fs.FileSystem
	durability       Durability
	rebuildThreshold int
	idleTimeout      time.Duration
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel logs human-readable text to stderr at the given minimum level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector. A nil collector disables metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithFileSystem replaces the file system the cache runs on.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fileSystem = fsys
	}
}

// WithDurability sets the journal durability mode. Default is DurabilityAsync.
func WithDurability(d Durability) Option {
	return func(o *options) {
		o.durability = d
	}
}

// WithRebuildThreshold sets how many redundant journal lines make a rebuild
// due. Values <= 0 use DefaultRebuildThreshold.
func WithRebuildThreshold(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultRebuildThreshold
		}
		o.rebuildThreshold = n
	}
}

// WithIdleTimeout sets how long the background cleanup goroutine lingers
// without work before exiting. Values <= 0 use 60 seconds.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			d = worker.DefaultIdleTimeout
		}
		o.idleTimeout = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fileSystem:       fs.Default,
		durability:       DurabilityAsync,
		rebuildThreshold: DefaultRebuildThreshold,
		idleTimeout:      worker.DefaultIdleTimeout,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

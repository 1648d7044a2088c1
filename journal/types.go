package journal

import "github.com/hupe1980/diskcache/internal/fs"

// DurabilityMode defines the fsync behavior for journal appends.
type DurabilityMode int

const (
	// DurabilityAsync flushes each state-changing record to the OS without fsync.
	// A process crash loses nothing; a machine crash may lose the tail of the
	// journal, which replay treats as an interrupted write.
	DurabilityAsync DurabilityMode = iota

	// DurabilitySync fsyncs after every DIRTY, CLEAN and REMOVE record.
	// Slowest but strongest guarantee.
	DurabilitySync
)

func (m DurabilityMode) String() string {
	switch m {
	case DurabilityAsync:
		return "async"
	case DurabilitySync:
		return "sync"
	default:
		return "unknown"
	}
}

// Options contains configuration for a journal Writer.
type Options struct {
	// FileSystem is used for every file operation. Defaults to the local disk.
	FileSystem fs.FileSystem

	// DurabilityMode controls fsync behavior (Async, Sync).
	// Default is DurabilityAsync.
	DurabilityMode DurabilityMode

	// BufferSize is the size of the append buffer. READ records stay in the
	// buffer until the next state-changing record or an explicit Flush.
	BufferSize int
}

// DefaultOptions returns default journal options.
var DefaultOptions = Options{
	FileSystem:     fs.Default,
	DurabilityMode: DurabilityAsync,
	BufferSize:     8 * 1024,
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions.BufferSize
	}
	return opts
}

// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts the operations the cache relies on (open, rename,
//     remove, stat, mkdir, readdir)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using the os package. Renames use
//     github.com/natefinch/atomic so replacing an existing file is atomic everywhere.
//   - [FaultyFS]: Test utility for fault injection (torn writes, failing renames,
//     failing removes, failing syncs)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("journal", fs.Fault{FailAfterBytes: 1024})
//	// inject ffs into the cache under test
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Filesystem operations are typically fast and non-interruptible at the
// syscall level.
package fs

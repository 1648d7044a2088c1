package journal

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/diskcache/internal/fs"
)

// ErrClosed is returned when appending to a closed Writer.
var ErrClosed = errors.New("journal closed")

// Writer appends records to an existing journal.
//
// A Writer is not safe for concurrent use; the cache serializes all appends
// under its own lock.
type Writer struct {
	file       fs.File
	buf        *bufio.Writer
	path       string
	durability DurabilityMode
	scratch    []byte
	appended   int
	closed     bool
}

// Open opens the journal at path for appending. The file must exist and carry a
// header; Open does not write one.
func Open(path string, optFns ...func(o *Options)) (*Writer, error) {
	opts := applyOptions(optFns)

	file, err := opts.FileSystem.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Writer{
		file:       file,
		buf:        bufio.NewWriterSize(file, opts.BufferSize),
		path:       path,
		durability: opts.DurabilityMode,
		scratch:    make([]byte, 0, 128),
	}, nil
}

// Path returns the path of the journal file.
func (w *Writer) Path() string { return w.path }

// Appended returns the number of records appended since Open.
func (w *Writer) Appended() int { return w.appended }

// Append writes rec. DIRTY, CLEAN and REMOVE records are flushed before Append
// returns (and fsynced under DurabilitySync); READ records are buffered.
func (w *Writer) Append(rec Record) error {
	if w.closed {
		return ErrClosed
	}

	w.scratch = rec.AppendTo(w.scratch[:0])
	if _, err := w.buf.Write(w.scratch); err != nil {
		return fmt.Errorf("failed to append %s record: %w", rec.Op, err)
	}
	w.appended++

	if rec.Op == OpRead {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	if w.durability == DurabilitySync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync journal: %w", err)
		}
	}
	return nil
}

// Flush writes buffered records to the OS.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	return nil
}

// Sync flushes buffered records and fsyncs the journal.
func (w *Writer) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes buffered records and closes the file. Calling Close more than
// once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush journal: %w", flushErr)
	}
	return closeErr
}

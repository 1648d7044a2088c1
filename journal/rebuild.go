package journal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/diskcache/internal/fs"
)

// ReconcileBackup resolves a journal.bak left behind by an interrupted rebuild.
// If the primary journal exists the backup is deleted, otherwise the backup is
// renamed into place.
func ReconcileBackup(dir string, optFns ...func(o *Options)) error {
	opts := applyOptions(optFns)
	fsys := opts.FileSystem

	backup := filepath.Join(dir, BackupFileName)
	ok, err := fs.Exists(fsys, backup)
	if err != nil || !ok {
		return err
	}

	primary := filepath.Join(dir, FileName)
	hasPrimary, err := fs.Exists(fsys, primary)
	if err != nil {
		return err
	}
	if hasPrimary {
		if err := fsys.Remove(backup); err != nil {
			return fmt.Errorf("failed to delete stale journal backup: %w", err)
		}
		return nil
	}
	if err := fsys.Rename(backup, primary); err != nil {
		return fmt.Errorf("failed to restore journal backup: %w", err)
	}
	return nil
}

// Rebuild replaces the journal in dir with a compact one holding a header and
// records, then reopens it for appending.
//
// The new journal is written to journal.tmp and fsynced. The current journal (if
// any) is renamed to journal.bak, journal.tmp is renamed to journal, and the
// backup is deleted. If writing the temporary file fails the current journal is
// left untouched.
func Rebuild(dir string, appVersion int, records []Record, optFns ...func(o *Options)) (*Writer, error) {
	opts := applyOptions(optFns)
	fsys := opts.FileSystem

	tmp := filepath.Join(dir, TempFileName)
	primary := filepath.Join(dir, FileName)
	backup := filepath.Join(dir, BackupFileName)

	if err := writeCompact(fsys, tmp, appVersion, records, opts.BufferSize); err != nil {
		_ = fs.RemoveIfExists(fsys, tmp)
		return nil, err
	}

	hasPrimary, err := fs.Exists(fsys, primary)
	if err != nil {
		return nil, err
	}
	if hasPrimary {
		if err := fsys.Rename(primary, backup); err != nil {
			_ = fs.RemoveIfExists(fsys, tmp)
			return nil, fmt.Errorf("failed to back up journal: %w", err)
		}
	}
	if err := fsys.Rename(tmp, primary); err != nil {
		if hasPrimary {
			_ = fsys.Rename(backup, primary)
		}
		return nil, fmt.Errorf("failed to install rebuilt journal: %w", err)
	}
	if err := fs.RemoveIfExists(fsys, backup); err != nil {
		return nil, fmt.Errorf("failed to delete journal backup: %w", err)
	}
	// Best effort: the swap is already recoverable through ReconcileBackup.
	_ = fs.SyncDir(fsys, dir)

	return Open(primary, optFns...)
}

func writeCompact(fsys fs.FileSystem, path string, appVersion int, records []Record, bufSize int) (err error) {
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close journal: %w", cerr)
		}
	}()

	bw := bufio.NewWriterSize(f, bufSize)
	if err := WriteHeader(bw, appVersion); err != nil {
		return err
	}

	var line []byte
	for _, rec := range records {
		if rec.Op != OpDirty && rec.Op != OpClean {
			return fmt.Errorf("%w: %s records do not belong in a compact journal", ErrMalformedRecord, rec.Op)
		}
		line = rec.AppendTo(line[:0])
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("failed to write journal: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Create writes a journal holding only the header to dir, replacing any journal
// that exists, and opens it for appending.
func Create(dir string, appVersion int, optFns ...func(o *Options)) (*Writer, error) {
	return Rebuild(dir, appVersion, nil, optFns...)
}

// IsIncompatible reports whether err was caused by a journal header mismatch.
func IsIncompatible(err error) bool {
	return errors.Is(err, ErrIncompatible)
}

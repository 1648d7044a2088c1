package diskcache

import (
	"errors"

	"github.com/hupe1980/diskcache/journal"
)

var (
	// ErrInvalidKey is returned for keys outside [a-z0-9_-]{1,64} and for the
	// reserved name "journal".
	ErrInvalidKey = journal.ErrInvalidKey

	// ErrInvalidArgument is returned when an argument is invalid (e.g. maxSize <= 0).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned when an operation is attempted on a closed cache.
	ErrClosed = errors.New("cache closed")

	// ErrEditorDone is returned when Commit or Abort is called on an editor that
	// was already committed or aborted.
	ErrEditorDone = errors.New("editor already committed or aborted")

	// ErrIncompatibleFormat marks a journal whose header does not match.
	// It never escapes Open: the cache is reset instead.
	ErrIncompatibleFormat = journal.ErrIncompatible
)

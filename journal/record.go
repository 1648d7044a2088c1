package journal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Magic is the first header line of every journal.
	Magic = "io.hupe1980.diskcache"
	// Version is the format version written on the second header line.
	Version = "1"

	// FileName is the primary journal inside the cache directory.
	FileName = "journal"
	// TempFileName is the target of an in-progress rebuild.
	TempFileName = "journal.tmp"
	// BackupFileName holds the previous journal while a rebuild swaps files.
	BackupFileName = "journal.bak"

	// MaxKeyLength is the longest accepted key.
	MaxKeyLength = 64
)

var (
	// ErrInvalidKey is returned for keys outside [a-z0-9_-]{1,64} and for reserved names.
	ErrInvalidKey = errors.New("invalid key")

	// ErrIncompatible is returned when a journal header does not match the
	// expected magic, format version or application version.
	ErrIncompatible = errors.New("incompatible journal")

	// ErrMalformedRecord is returned by ParseRecord for lines it cannot decode.
	ErrMalformedRecord = errors.New("malformed journal record")
)

// ValidateKey checks key against the cache key grammar.
//
// The name of the journal itself is reserved: a committed value for it would
// share the journal's path.
func ValidateKey(key string) error {
	if len(key) == 0 || len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %q: length must be between 1 and %d", ErrInvalidKey, key, MaxKeyLength)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return fmt.Errorf("%w: %q: keys must match [a-z0-9_-]{1,%d}", ErrInvalidKey, key, MaxKeyLength)
		}
	}
	if key == FileName {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidKey, key)
	}
	return nil
}

// Op is the operation recorded by one journal line.
type Op uint8

const (
	// OpDirty marks the start of a write.
	OpDirty Op = iota + 1
	// OpClean marks a committed value and carries its length.
	OpClean
	// OpRemove marks a removed key.
	OpRemove
	// OpRead marks a read; informational only.
	OpRead
)

func (o Op) String() string {
	switch o {
	case OpDirty:
		return "DIRTY"
	case OpClean:
		return "CLEAN"
	case OpRemove:
		return "REMOVE"
	case OpRead:
		return "READ"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(o)) + ")"
	}
}

func parseOp(s string) (Op, bool) {
	switch s {
	case "DIRTY":
		return OpDirty, true
	case "CLEAN":
		return OpClean, true
	case "REMOVE":
		return OpRemove, true
	case "READ":
		return OpRead, true
	default:
		return 0, false
	}
}

// Record is a single journal line.
type Record struct {
	Op     Op
	Key    string
	Length int64 // Only meaningful for OpClean.
}

// Dirty returns a DIRTY record for key.
func Dirty(key string) Record { return Record{Op: OpDirty, Key: key} }

// Clean returns a CLEAN record for key with the committed length.
func Clean(key string, length int64) Record { return Record{Op: OpClean, Key: key, Length: length} }

// Remove returns a REMOVE record for key.
func Remove(key string) Record { return Record{Op: OpRemove, Key: key} }

// Read returns a READ record for key.
func Read(key string) Record { return Record{Op: OpRead, Key: key} }

// AppendTo appends the newline-terminated text form of r to dst.
func (r Record) AppendTo(dst []byte) []byte {
	dst = append(dst, r.Op.String()...)
	dst = append(dst, ' ')
	dst = append(dst, r.Key...)
	if r.Op == OpClean {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, r.Length, 10)
	}
	return append(dst, '\n')
}

// String returns the text form of r without the trailing newline.
func (r Record) String() string {
	b := r.AppendTo(nil)
	return string(b[:len(b)-1])
}

// ParseRecord decodes one journal line. The line must not include its newline.
func ParseRecord(line string) (Record, error) {
	fields := strings.Split(line, " ")
	op, ok := parseOp(fields[0])
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown operation in %q", ErrMalformedRecord, line)
	}

	want := 2
	if op == OpClean {
		want = 3
	}
	if len(fields) != want {
		return Record{}, fmt.Errorf("%w: %s expects %d fields: %q", ErrMalformedRecord, op, want, line)
	}

	key := fields[1]
	if err := ValidateKey(key); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	rec := Record{Op: op, Key: key}
	if op == OpClean {
		n, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || n < 0 {
			return Record{}, fmt.Errorf("%w: bad length in %q", ErrMalformedRecord, line)
		}
		rec.Length = n
	}
	return rec, nil
}

package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// BlobStore is a read-only source of named blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to one blob.
type Blob interface {
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
	// ReadRange returns a reader for at most n bytes starting at off.
	// It returns io.EOF when off is at or past the end of the blob.
	ReadRange(ctx context.Context, off, n int64) (io.ReadCloser, error)
}

// Downloader is implemented by stores that can fetch a whole blob faster than
// a sequential read, for example with parallel ranged requests.
type Downloader interface {
	DownloadTo(ctx context.Context, name string, w io.WriterAt) (int64, error)
}

// NewReader returns a reader over the whole blob.
func NewReader(ctx context.Context, b Blob) (io.ReadCloser, error) {
	if b.Size() == 0 {
		return io.NopCloser(eofReader{}), nil
	}
	return b.ReadRange(ctx, 0, b.Size())
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// clampRange returns the exclusive end of the range [off, off+n) within size.
func clampRange(off, n, size int64) (int64, error) {
	if off < 0 || n < 0 {
		return 0, errors.New("blobstore: negative range")
	}
	if off >= size {
		return 0, io.EOF
	}
	end := off + n
	if end > size || end < off {
		end = size
	}
	return end, nil
}

// Package codec provides stream encodings for stored cache values.
//
// Codec selection is a breaking-change boundary: values written with one codec
// cannot be read back with another. Use a different application version when
// switching codecs so the cache starts empty.
package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec wraps streams in an encoding.
// Implementations must be safe for concurrent use.
type Codec interface {
	// NewWriter returns a writer that encodes into w. Closing it flushes the
	// encoding but does not close w.
	NewWriter(w io.Writer) (io.WriteCloser, error)

	// NewReader returns a reader that decodes r. Closing it does not close r.
	NewReader(r io.Reader) (io.ReadCloser, error)

	// Name returns the stable name of the codec.
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = None{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "none":
		return None{}, true
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// None stores values as is.
type None struct{}

func (None) Name() string { return "none" }

func (None) NewWriter(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil }

func (None) NewReader(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Zstd compresses values with zstd.
type Zstd struct {
	// Level is the zstd compression level (1-22). 0 uses the library default.
	Level int
}

func (Zstd) Name() string { return "zstd" }

func (z Zstd) NewWriter(w io.Writer) (io.WriteCloser, error) {
	opts := []zstd.EOption{}
	if z.Level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.Level)))
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}

func (Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return zstdReadCloser{dec}, nil
}

// zstdReadCloser adapts zstd.Decoder, whose Close returns nothing.
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// LZ4 compresses values with the lz4 frame format.
type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }

func (LZ4) NewWriter(w io.Writer) (io.WriteCloser, error) { return lz4.NewWriter(w), nil }

func (LZ4) NewReader(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(lz4.NewReader(r)), nil }

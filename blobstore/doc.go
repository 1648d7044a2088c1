// Package blobstore provides read access to the origin of cached values.
//
// A BlobStore hands out Blobs by name. The keyed package's Loader reads a blob
// once and keeps the bytes in a local disk cache.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system
//   - MemoryStore: an in-memory map, for tests and embedding
//   - s3.Store: Amazon S3 with ranged reads and parallel downloads
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
//	type Blob interface {
//	    io.Closer
//	    Size() int64
//	    ReadRange(ctx, off, n int64) (io.ReadCloser, error)
//	}
//
// Open returns an error matching ErrNotFound for missing blobs.
package blobstore

// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("assets/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	loader := keyed.NewLoader(manager, store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Parallel downloads of large objects with DownloadTo
//   - Configurable prefix for multi-tenant isolation
package s3

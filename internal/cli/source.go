package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hupe1980/diskcache/blobstore"
	minioblob "github.com/hupe1980/diskcache/blobstore/minio"
	"github.com/hupe1980/diskcache/blobstore/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// openSource resolves a --source value:
//
//	DIR or file://DIR               local directory
//	s3://bucket/prefix              Amazon S3, credentials from the AWS config chain
//	minio://host:port/bucket/prefix MinIO over HTTPS, credentials from MINIO_* env vars
//	minio+http://...                MinIO over plain HTTP
func openSource(ctx context.Context, source string) (blobstore.BlobStore, error) {
	if source == "" {
		return nil, errors.New("no source: set --source or \"source\" in the config file")
	}
	if !strings.Contains(source, "://") {
		return blobstore.NewLocalStore(source), nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid source %q: %w", source, err)
	}

	switch u.Scheme {
	case "file":
		return blobstore.NewLocalStore(u.Path), nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("invalid source %q: missing bucket", source)
		}
		return s3.New(ctx, u.Host, s3.WithPrefix(strings.TrimPrefix(u.Path, "/")))
	case "minio", "minio+http":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return nil, fmt.Errorf("invalid source %q: want minio://host/bucket/prefix", source)
		}
		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: u.Scheme == "minio",
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

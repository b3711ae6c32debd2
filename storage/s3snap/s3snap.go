// Package s3snap fetches a storage snapshot file (a DuckDB database
// file or a column-archive dump) from S3 to a local temp path before
// storage/duckstore or storage/pgstore opens it, modeling how a read
// replica of the engine would hydrate itself ahead of serving queries.
// It generalizes the teacher's UploadFileToS3 (internal/e2e_harness/
// fixtures.go) and the S3 client/credentials wiring in internal/cdc/
// flusher.go — both upload-side — into the download path this engine's
// read-only role actually needs.
package s3snap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
)

// Options configures how a Fetcher reaches its bucket. Endpoint and
// PathStyle exist for S3-compatible stores (MinIO, RustFS) the same way
// the teacher's e2e harness points at a local object-store container
// instead of real AWS S3.
type Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Fetcher downloads snapshot objects from one S3 bucket.
type Fetcher struct {
	client *s3.Client
	bucket string
}

// NewFetcher builds a Fetcher from static or ambient AWS credentials,
// following the teacher's config.LoadDefaultConfig +
// NewStaticCredentialsProvider pattern; when opts.AccessKey is empty
// the SDK's default credential chain (environment, shared config,
// instance role) is used instead.
func NewFetcher(ctx context.Context, bucket string, opts Options) (*Fetcher, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(opts.Endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3snap: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
	})
	return &Fetcher{client: client, bucket: bucket}, nil
}

// FetchToTemp downloads key into a fresh temporary file under dir
// (os.TempDir() if dir is empty) and returns its path. The caller owns
// cleanup; storage/duckstore.Open and database/sql's postgres driver
// both take a plain filesystem path, so this is the hand-off point
// between "snapshot lives in S3" and "snapshot lives on this replica's
// disk" that spec.md §5 assumes for a storage snapshot read.
func (f *Fetcher) FetchToTemp(ctx context.Context, key, dir string) (string, error) {
	out, err := os.CreateTemp(dir, "objectdb-snapshot-*"+filepath.Ext(key))
	if err != nil {
		return "", fmt.Errorf("s3snap: create temp file: %w", err)
	}
	defer out.Close()

	downloader := manager.NewDownloader(f.client)
	if _, err := downloader.Download(ctx, out, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	}); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("s3snap: download s3://%s/%s: %w", f.bucket, key, err)
	}
	return out.Name(), nil
}

// Exists reports whether key is present in the bucket, unwrapping
// smithy API errors the way the teacher's UploadFileToS3 distinguishes
// "bucket already exists" from a real create failure.
func (f *Fetcher) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("s3snap: head s3://%s/%s: %w", f.bucket, key, err)
}

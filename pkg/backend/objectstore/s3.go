// Package objectstore implements the hierarchical object-store backend
// adapter on Amazon S3 or S3-compatible storage (MinIO, Localstack).
//
// Keys mirror the transcode pipeline's layout: per-record prefixes holding
// resolution playlists, segment folders, and thumbnails. Prefix deletion is a
// paginated list followed by batched DeleteObjects calls.
//
// Transient S3 failures are retried by the SDK's standard retryer, configured
// at client construction; this adapter adds idempotence (absent objects are
// success) rather than another retry layer.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/mediasweep/mediasweep/internal/logger"
	"github.com/mediasweep/mediasweep/pkg/backend"
)

// S3Backend implements backend.ObjectBackend on an S3 bucket.
//
// Thread Safety:
// Safe for concurrent use; the S3 client is concurrency-safe and the adapter
// holds no mutable state.
type S3Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string // optional prefix for all keys
}

// Config contains configuration for the S3 object-store backend.
type Config struct {
	// Client is the configured S3 client (required)
	Client *s3.Client

	// Bucket is the S3 bucket name (required)
	Bucket string

	// KeyPrefix is an optional prefix prepended to every key
	KeyPrefix string
}

// New creates an S3-backed object-store adapter and verifies bucket access.
//
// The bucket must already exist; this function does not create it.
func New(ctx context.Context, cfg Config) (*S3Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("object store: S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Backend{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey returns the full S3 key for a catalog locator.
func (s *S3Backend) objectKey(key string) string {
	if s.keyPrefix != "" {
		return s.keyPrefix + key
	}
	return key
}

// Exists checks whether an object exists at the key.
//
// Uses HeadObject so existence checks never download content. A missing
// object is (false, nil), not an error.
func (s *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// Delete removes a single object.
//
// Existence is checked first so the caller learns whether anything was
// actually removed; deleting a missing object is an idempotent no-op
// returning (false, nil).
func (s *S3Backend) Delete(ctx context.Context, key string) (bool, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		logger.Debug("object store: %s already absent", key)
		return false, nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	return true, nil
}

// DeleteByPrefix removes every object under the prefix.
//
// Listing is paginated; deletion uses DeleteObjects in chunks of up to 1000
// (the S3 per-request limit). An empty prefix yields {0, 0} and no error.
// Per-object delete failures are counted, not fatal: the caller decides what
// a partially-deleted prefix means for its record.
func (s *S3Backend) DeleteByPrefix(ctx context.Context, prefix string) (backend.PrefixResult, error) {
	var result backend.PrefixResult

	if err := ctx.Err(); err != nil {
		return result, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return result, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
		}

		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		deleted, failed, err := s.deleteBatch(ctx, objects)
		if err != nil {
			return result, err
		}
		result.Deleted += deleted
		result.Errors += failed
	}

	return result, nil
}

// deleteBatch issues DeleteObjects calls in S3-sized chunks.
func (s *S3Backend) deleteBatch(ctx context.Context, objects []types.ObjectIdentifier) (deleted, failed int, err error) {
	// S3 allows max 1000 objects per delete request
	const maxBatchSize = 1000

	for i := 0; i < len(objects); i += maxBatchSize {
		if err := ctx.Err(); err != nil {
			return deleted, failed, err
		}

		end := i + maxBatchSize
		if end > len(objects) {
			end = len(objects)
		}
		chunk := objects[i:end]

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: chunk,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, failed, fmt.Errorf("failed to delete batch: %w", err)
		}

		failed += len(out.Errors)
		deleted += len(chunk) - len(out.Errors)

		for _, delErr := range out.Errors {
			if delErr.Key != nil && delErr.Message != nil {
				logger.Warn("object store: failed to delete %s: %s", *delErr.Key, *delErr.Message)
			}
		}
	}

	return deleted, failed, nil
}

// List returns up to maxKeys keys under the prefix, with the configured key
// prefix stripped so callers see catalog-level locators.
func (s *S3Backend) List(ctx context.Context, prefix string, maxKeys int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(int32(maxKeys))
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	var keys []string
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			key := *obj.Key
			if s.keyPrefix != "" && len(key) > len(s.keyPrefix) {
				key = key[len(s.keyPrefix):]
			}
			keys = append(keys, key)
			if maxKeys > 0 && len(keys) >= maxKeys {
				return keys, nil
			}
		}
	}

	return keys, nil
}

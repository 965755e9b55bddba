package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/mediasweep/mediasweep/internal/logger"
	"github.com/mediasweep/mediasweep/pkg/backend"
	"github.com/mediasweep/mediasweep/pkg/backend/objectstore"
	"github.com/mediasweep/mediasweep/pkg/backend/pin"
	"github.com/mediasweep/mediasweep/pkg/catalog"
	catalogBadger "github.com/mediasweep/mediasweep/pkg/catalog/badger"
	catalogMemory "github.com/mediasweep/mediasweep/pkg/catalog/memory"
)

// CreateCatalogStore creates a catalog store based on configuration.
//
// This factory uses the Type field to select the implementation, then
// decodes the type-specific configuration from the corresponding map and
// passes it to the store's constructor.
//
// Supported types:
//   - "memory": in-memory catalog, ephemeral (tests, dry runs)
//   - "badger": BadgerDB-backed catalog, persistent
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Catalog store configuration
//
// Returns:
//   - catalog.Store: Initialized catalog store
//   - error: Configuration or initialization error
func CreateCatalogStore(ctx context.Context, cfg *CatalogConfig) (catalog.Store, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return catalogMemory.NewMemoryCatalogStore(), nil
	case "badger":
		return createBadgerCatalogStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown catalog store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerCatalogStore creates a BadgerDB-backed persistent catalog store.
func createBadgerCatalogStore(ctx context.Context, options map[string]any) (catalog.Store, error) {
	type BadgerCatalogOptions struct {
		DBPath           string `mapstructure:"db_path"`
		BlockCacheSizeMB int64  `mapstructure:"block_cache_mb"`
	}

	var storeOpts BadgerCatalogOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger catalog store options: %w", err)
	}

	if storeOpts.DBPath == "" {
		return nil, fmt.Errorf("badger catalog store: db_path is required")
	}

	store, err := catalogBadger.NewBadgerCatalogStore(ctx, catalogBadger.BadgerCatalogStoreConfig{
		DBPath:           storeOpts.DBPath,
		BlockCacheSizeMB: storeOpts.BlockCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger catalog store: %w", err)
	}

	return store, nil
}

// CreatePinBackend creates the content-addressed pin API adapter.
//
// Options (backends.pin):
//   - endpoint: base URL of the pin service API (required)
//   - request_timeout: per-call HTTP timeout
//   - max_attempts / base_delay: transient-failure retry policy
func CreatePinBackend(cfg map[string]any) (backend.PinBackend, error) {
	type PinOptions struct {
		Endpoint       string        `mapstructure:"endpoint"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		MaxAttempts    int           `mapstructure:"max_attempts"`
		BaseDelay      time.Duration `mapstructure:"base_delay"`
	}

	var opts PinOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode pin backend options: %w", err)
	}

	if opts.Endpoint == "" {
		return nil, fmt.Errorf("pin backend: endpoint is required")
	}

	adapter, err := pin.New(pin.Config{
		Endpoint:       opts.Endpoint,
		RequestTimeout: opts.RequestTimeout,
		Retry: backend.RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.BaseDelay,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pin backend: %w", err)
	}

	logger.Info("Pin backend initialized: endpoint=%s", opts.Endpoint)
	return adapter, nil
}

// CreateObjectBackend creates the S3-compatible object store adapter.
//
// Options (backends.object_store):
//   - region, bucket: S3 location (required)
//   - key_prefix: optional prefix prepended to every key
//   - endpoint: custom endpoint for MinIO/Localstack
//   - access_key_id / secret_access_key: static credentials; the default
//     AWS credential chain applies when omitted
//   - max_retries: SDK retry attempts for transient errors
func CreateObjectBackend(ctx context.Context, cfg map[string]any) (backend.ObjectBackend, error) {
	type ObjectStoreOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts ObjectStoreOptions
	if err := mapstructure.Decode(cfg, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode object store options: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("object store: region is required")
	}

	client, err := buildS3Client(ctx, opts.Region, opts.Endpoint, opts.AccessKeyID, opts.SecretAccessKey, opts.MaxRetries)
	if err != nil {
		return nil, err
	}

	adapter, err := objectstore.New(ctx, objectstore.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store backend: %w", err)
	}

	logger.Info("Object store backend initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return adapter, nil
}

// buildS3Client assembles the AWS SDK client from the decoded options.
func buildS3Client(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string, maxRetries int) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(region))

	// Custom endpoint support for MinIO, Localstack, etc.
	if endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain.
	if accessKeyID != "" && secretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Destructive batch work tolerates slow retries better than failed ones.
	if maxRetries == 0 {
		maxRetries = 10
	}
	retries := maxRetries
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = retries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return client, nil
}

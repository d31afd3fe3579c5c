package config

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/brainsharer/annostore/blobstore"
	"github.com/brainsharer/annostore/blobstore/minio"
	"github.com/brainsharer/annostore/blobstore/s3"
)

// Open returns the configured blob store.
func (s StorageConfig) Open(ctx context.Context) (blobstore.Store, error) {
	switch s.Backend {
	case BackendMemory:
		return blobstore.NewMemoryStore(), nil
	case BackendLocal:
		return blobstore.NewLocalStore(s.Path), nil
	case BackendMinIO:
		return s.openMinIO()
	case BackendS3:
		return s.openS3(ctx)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

func (s StorageConfig) openMinIO() (blobstore.Store, error) {
	creds := credentials.NewEnvMinio()
	if s.AccessKey != "" {
		creds = credentials.NewStaticV4(s.AccessKey, s.SecretKey, "")
	}
	client, err := miniogo.New(s.Endpoint, &miniogo.Options{
		Creds:  creds,
		Secure: s.Secure,
		Region: s.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return minio.NewStore(client, s.Bucket, s.Prefix), nil
}

func (s StorageConfig) openS3(ctx context.Context) (blobstore.Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.DynamoDBTable != "" {
		store, err := s3.NewDDBCommitStoreFromConfig(ctx, s.Bucket, s.Prefix, s.DynamoDBTable, opts...)
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
		return store, nil
	}
	store, err := s3.New(ctx, s.Bucket, s.Prefix, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: %w", err)
	}
	return store, nil
}

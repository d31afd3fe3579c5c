// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", "annotations/",
//	    config.WithRegion("us-east-1"),
//	)
//
// For multiple writers, wrap the store so the CURRENT pointer is committed
// through DynamoDB:
//
//	commits, err := s3.NewDDBCommitStoreFromConfig(ctx, "my-bucket", "annotations/", "annostore-commits")
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3

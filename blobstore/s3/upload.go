package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/brainsharer/annostore/blobstore"
)

// UploadConfig tunes how snapshots are written to S3.
type UploadConfig struct {
	PartSize          int64 // bytes per multipart part, 8 MiB by default
	Concurrency       int   // parts in flight, 5 by default
	EnableChecksum    bool  // send a CRC32C with every object, on by default
	LeavePartsOnError bool  // skip AbortMultipartUpload after a failure
}

// DefaultUploadConfig returns the settings NewStore starts from.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 << 20,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func (c UploadConfig) uploader(client Client) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = c.PartSize
		u.Concurrency = c.Concurrency
		u.LeavePartsOnError = c.LeavePartsOnError
	})
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// computeCRC32C encodes the checksum the way the x-amz-checksum-crc32c
// header carries it.
func computeCRC32C(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], crc32.Checksum(data, castagnoli))
	return base64.StdEncoding.EncodeToString(b[:])
}

// startUpload streams key through the multipart uploader.
func startUpload(ctx context.Context, up *manager.Uploader, bucket, key string, checksum bool) *blobstore.Upload {
	return blobstore.StartUpload(func(r io.Reader) error {
		in := &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key), Body: r}
		if checksum {
			in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		}
		_, err := up.Upload(ctx, in)
		return err
	})
}

func putObject(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(computeCRC32C(data)),
	})
	return err
}

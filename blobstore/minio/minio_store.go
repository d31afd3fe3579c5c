package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/brainsharer/annostore/blobstore"
	"github.com/minio/minio-go/v7"
)

const contentType = "application/octet-stream"

// Store keeps snapshots in a bucket of any S3-compatible server reachable
// through minio-go. Names are stored under rootPrefix.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore returns a Store for bucket. rootPrefix is joined in front of every
// blob name, e.g. "annotations/".
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// name maps an object key back to the blob name it was stored under.
func (s *Store) name(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	k := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, k, minio.StatObjectOptions{})
	switch {
	case isNotFound(err):
		return nil, blobstore.ErrNotFound
	case err != nil:
		return nil, err
	}
	return &object{store: s, key: k, size: info.Size}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Create streams an object of unknown length. minio-go switches to a
// multipart upload once the first part fills.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	k := s.key(name)
	return blobstore.StartUpload(func(r io.Reader) error {
		_, err := s.client.PutObject(ctx, s.bucket, k, r, -1, minio.PutObjectOptions{ContentType: contentType})
		return err
	}), nil
}

// Delete tolerates keys that are already gone.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	p := s.key(prefix)
	if prefix == "" && s.prefix != "" {
		// path.Join drops the trailing slash; keep it so "annotations"
		// does not also match "annotations-old/".
		p = strings.TrimSuffix(s.prefix, "/") + "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: p, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if n := s.name(obj.Key); n != "" {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

// object reads a stored blob with ranged GETs.
type object struct {
	store *Store
	key   string
	size  int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// get fetches bytes [off, min(off+n, size)).
func (o *object) get(ctx context.Context, off, n int64) (*minio.Object, error) {
	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, min(off+n, o.size)-1); err != nil {
		return nil, err
	}
	return o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= o.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), o.size-off)
	r, err := o.get(ctx, off, want)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	n, err := io.ReadFull(r, p[:want])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (blobstore.ReadCloser, error) {
	if off >= o.size {
		return blobstore.NopReadCloser(bytes.NewReader(nil)), nil
	}
	return o.get(ctx, off, length)
}

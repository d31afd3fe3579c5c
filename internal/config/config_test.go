package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainsharer/annostore/blobstore"
	"github.com/brainsharer/annostore/blobstore/minio"
	"github.com/brainsharer/annostore/property"
)

const sample = `
layer:
  rank: 3
  relationships: [segments]
  properties:
    - id: color
      type: rgb
      default: "#ff0000"
    - id: confidence
      type: uint8
      default: 2
      enum_values: [1, 2]
      enum_labels: [low, high]
storage:
  backend: local
  path: ${ANNOSTORE_TEST_DIR}/layer
snapshot:
  compression: lz4
  codec: json
  keep: 3
mirror:
  url: redis://localhost:6379/0
  key: layer:1
  interval: 50ms
log:
  level: debug
  format: json
`

func TestParse(t *testing.T) {
	t.Setenv("ANNOSTORE_TEST_DIR", "/data")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "/data/layer", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Snapshot.Keep)
	assert.Equal(t, 50*time.Millisecond, cfg.Mirror.Interval)

	schema, err := cfg.Schema()
	require.NoError(t, err)
	assert.Equal(t, 3, schema.Rank)
	assert.Equal(t, []string{"segments"}, schema.Relationships)
	require.Len(t, schema.Properties, 2)
	assert.Equal(t, property.TypeRGB, schema.Properties[0].Type)
	assert.Equal(t, float64(0xFF0000), schema.Properties[0].Default)
	assert.Equal(t, []string{"low", "high"}, schema.Properties[1].EnumLabels)

	assert.Len(t, cfg.SnapshotOptions(), 3)
	assert.Len(t, cfg.MirrorOptions(), 2)
	assert.NotNil(t, cfg.Logger())
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "layer:\n  rnak: 3\n", "rnak"},
		{"rank", "layer:\n  rank: 0\n", "layer.rank"},
		{"property type", "layer:\n  properties:\n    - {id: c, type: rgb9}\n", "layer.properties"},
		{"backend", "storage:\n  backend: tape\n", "storage.backend"},
		{"local path", "storage:\n  backend: local\n  path: ''\n", "storage.path"},
		{"bucket", "storage:\n  backend: s3\n", "storage.bucket"},
		{"endpoint", "storage:\n  backend: minio\n  bucket: b\n", "storage.endpoint"},
		{"dynamodb", "storage:\n  backend: memory\n  dynamodb_table: t\n", "dynamodb_table"},
		{"compression", "snapshot:\n  compression: brotli\n", "snapshot.compression"},
		{"codec", "snapshot:\n  codec: msgpack\n", "snapshot.codec"},
		{"keep", "snapshot:\n  keep: -1\n", "snapshot.keep"},
		{"mirror pair", "mirror:\n  url: redis://x\n", "mirror.url"},
		{"log level", "log:\n  level: loud\n", "log.level"},
		{"log format", "log:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	_, err := Parse([]byte("layer:\n  rank: -1\nstorage:\n  backend: tape\nlog:\n  format: xml\n"))
	require.Error(t, err)
	for _, want := range []string{"layer.rank", "storage.backend", "log.format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annostore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: memory\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStorageOpen(t *testing.T) {
	ctx := context.Background()

	bs, err := StorageConfig{Backend: BackendMemory}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.MemoryStore{}, bs)

	dir := t.TempDir()
	bs, err = StorageConfig{Backend: BackendLocal, Path: dir}.Open(ctx)
	require.NoError(t, err)
	require.IsType(t, &blobstore.LocalStore{}, bs)
	assert.Equal(t, dir, bs.(*blobstore.LocalStore).Root())

	bs, err = StorageConfig{Backend: BackendMinIO, Endpoint: "localhost:9000", Bucket: "b", AccessKey: "k", SecretKey: "s"}.Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &minio.Store{}, bs)

	_, err = StorageConfig{Backend: "tape"}.Open(ctx)
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Storage = StorageConfig{Backend: BackendMemory}

	opts, err := cfg.Options(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Mirror.URL, cfg.Mirror.Key = "redis://localhost:6379", "k"
	opts, err = cfg.Options(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, opts, 4)
}

// Package config loads the YAML file describing an annotation layer: its
// schema, where snapshots live, how they are compressed and which Redis key
// mirrors it.
//
// String values may reference environment variables as $NAME or ${NAME}.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/brainsharer/annostore"
	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/codec"
	"github.com/brainsharer/annostore/mirror"
	"github.com/brainsharer/annostore/property"
	"github.com/brainsharer/annostore/snapshot"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendMinIO  = "minio"
	BackendS3     = "s3"
)

// Config is the root of the configuration file.
type Config struct {
	Layer    LayerConfig    `yaml:"layer"`
	Storage  StorageConfig  `yaml:"storage"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Log      LogConfig      `yaml:"log"`
}

// LayerConfig describes the annotation schema.
type LayerConfig struct {
	Rank          int              `yaml:"rank"`
	Relationships []string         `yaml:"relationships"`
	Properties    []map[string]any `yaml:"properties"`
}

// StorageConfig selects the blob store holding snapshots.
type StorageConfig struct {
	Backend string `yaml:"backend"`

	// Path is the root directory of the local backend.
	Path string `yaml:"path"`

	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Region    string `yaml:"region"`

	// DynamoDBTable enables conditional commits for the s3 backend.
	DynamoDBTable string `yaml:"dynamodb_table"`
}

// SnapshotConfig controls snapshot encoding and retention.
type SnapshotConfig struct {
	Compression string `yaml:"compression"`
	Codec       string `yaml:"codec"`
	BlockSize   int    `yaml:"block_size"`
	Keep        int    `yaml:"keep"`
}

// MirrorConfig points the layer at a Redis key.
type MirrorConfig struct {
	URL      string        `yaml:"url"`
	Key      string        `yaml:"key"`
	Origin   string        `yaml:"origin"`
	Interval time.Duration `yaml:"interval"`
}

// LogConfig selects the log level and format (text or json).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for missing fields.
func Default() *Config {
	return &Config{
		Layer:    LayerConfig{Rank: 3},
		Storage:  StorageConfig{Backend: BackendLocal, Path: "./annostore-data"},
		Snapshot: SnapshotConfig{Compression: snapshot.CompressionZSTD.String(), Codec: codec.Default.Name(), Keep: 5},
		Mirror:   MirrorConfig{Interval: 200 * time.Millisecond},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Schema(); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the local backend"))
		}
	case BackendMinIO, BackendS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend))
		}
		if c.Storage.Backend == BackendMinIO && c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	if c.Storage.DynamoDBTable != "" && c.Storage.Backend != BackendS3 {
		errs = append(errs, errors.New("storage.dynamodb_table requires the s3 backend"))
	}

	if _, err := snapshot.ParseCompression(c.Snapshot.Compression); err != nil {
		errs = append(errs, fmt.Errorf("snapshot.compression: %w", err))
	}
	if _, ok := codec.ByName(c.Snapshot.Codec); !ok {
		errs = append(errs, fmt.Errorf("snapshot.codec: unknown codec %q (have %s)", c.Snapshot.Codec, strings.Join(codec.Names(), ", ")))
	}
	if c.Snapshot.Keep < 0 {
		errs = append(errs, errors.New("snapshot.keep must not be negative"))
	}

	if (c.Mirror.URL == "") != (c.Mirror.Key == "") {
		errs = append(errs, errors.New("mirror.url and mirror.key must be set together"))
	}
	if c.Mirror.Interval < 0 {
		errs = append(errs, errors.New("mirror.interval must not be negative"))
	}

	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Schema builds the layer schema.
func (c *Config) Schema() (annotation.Schema, error) {
	if c.Layer.Rank < 1 {
		return annotation.Schema{}, fmt.Errorf("layer.rank must be positive, got %d", c.Layer.Rank)
	}
	specs, err := property.ParseSpecList(c.Layer.Properties)
	if err != nil {
		return annotation.Schema{}, fmt.Errorf("layer.properties: %w", err)
	}
	return annotation.Schema{
		Rank:          c.Layer.Rank,
		Relationships: c.Layer.Relationships,
		Properties:    specs,
	}, nil
}

// SnapshotOptions returns the snapshot encoding options.
func (c *Config) SnapshotOptions() []snapshot.Option {
	comp, _ := snapshot.ParseCompression(c.Snapshot.Compression)
	cd, _ := codec.ByName(c.Snapshot.Codec)
	return []snapshot.Option{
		snapshot.WithCompression(comp),
		snapshot.WithCodec(cd),
		snapshot.WithBlockSize(c.Snapshot.BlockSize),
	}
}

// MirrorOptions returns the mirror options.
func (c *Config) MirrorOptions() []mirror.Option {
	opts := []mirror.Option{mirror.WithOrigin(c.Mirror.Origin)}
	if c.Mirror.Interval > 0 {
		opts = append(opts, mirror.WithRateLimit(rate.Every(c.Mirror.Interval), 1))
	}
	return opts
}

// Logger returns the configured logger.
func (c *Config) Logger() *annostore.Logger {
	level, _ := c.Log.level()
	if strings.EqualFold(c.Log.Format, "json") {
		return annostore.NewJSONLogger(level)
	}
	return annostore.NewTextLogger(level)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Options opens the blob store and returns everything annostore.Open needs.
// The mirror is included only when withMirror is set.
func (c *Config) Options(ctx context.Context, withMirror bool) ([]annostore.Option, error) {
	bs, err := c.Storage.Open(ctx)
	if err != nil {
		return nil, err
	}
	opts := []annostore.Option{
		annostore.WithBlobStore(bs),
		annostore.WithSnapshotOptions(c.SnapshotOptions()...),
		annostore.WithLogger(c.Logger()),
	}
	if withMirror && c.Mirror.URL != "" {
		opts = append(opts, annostore.WithMirrorURL(c.Mirror.URL, c.Mirror.Key, c.MirrorOptions()...))
	}
	return opts, nil
}

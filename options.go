package annostore

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/brainsharer/annostore/blobstore"
	"github.com/brainsharer/annostore/codec"
	"github.com/brainsharer/annostore/mirror"
	"github.com/brainsharer/annostore/snapshot"
	"github.com/brainsharer/annostore/store"
)

type options struct {
	blobs            blobstore.Store
	loadOnOpen       bool
	snapshotOptions  []snapshot.Option
	storeOptions     []store.Option
	metricsCollector MetricsCollector
	logger           *Logger

	redisClient   *redis.Client
	redisURL      string
	mirrorKey     string
	mirrorOptions []mirror.Option
}

// Option configures Open.
type Option func(*options)

// WithBlobStore persists snapshots to bs. Open restores the latest snapshot
// unless WithoutLoad is given.
func WithBlobStore(bs blobstore.Store) Option {
	return func(o *options) {
		o.blobs = bs
	}
}

// WithoutLoad skips restoring the latest snapshot in Open.
func WithoutLoad() Option {
	return func(o *options) {
		o.loadOnOpen = false
	}
}

// WithCompression sets the snapshot payload compression.
func WithCompression(c snapshot.Compression) Option {
	return WithSnapshotOptions(snapshot.WithCompression(c))
}

// WithCodec sets the codec used for snapshot manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return WithSnapshotOptions(snapshot.WithCodec(c))
}

// WithSnapshotOptions passes options through to the snapshot package.
func WithSnapshotOptions(optFns ...snapshot.Option) Option {
	return func(o *options) {
		o.snapshotOptions = append(o.snapshotOptions, optFns...)
	}
}

// WithStoreOptions passes options through to the underlying store, for
// example store.WithIDGenerator or store.WithCoordinateSpace.
func WithStoreOptions(optFns ...store.Option) Option {
	return func(o *options) {
		o.storeOptions = append(o.storeOptions, optFns...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &annostore.BasicMetricsCollector{}
//	db, _ := annostore.Open(ctx, schema, annostore.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Adds: %d, Avg latency: %dns\n", stats.AddCount, stats.AddAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMirror mirrors the DB to key on an existing Redis client. The DB
// takes ownership of the client.
func WithMirror(client *redis.Client, key string, optFns ...mirror.Option) Option {
	return func(o *options) {
		o.redisClient = client
		o.mirrorKey = key
		o.mirrorOptions = append(o.mirrorOptions, optFns...)
	}
}

// WithMirrorURL mirrors the DB to key on the Redis server at url
// (redis://[user:pass@]host:port/db).
func WithMirrorURL(url, key string, optFns ...mirror.Option) Option {
	return func(o *options) {
		o.redisURL = url
		o.mirrorKey = key
		o.mirrorOptions = append(o.mirrorOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		loadOnOpen:       true,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

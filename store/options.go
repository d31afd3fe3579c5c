package store

import (
	"io"
	"log/slog"
	"time"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/coordspace"
)

// MetricsRecorder receives the outcome of store mutations.
type MetricsRecorder interface {
	RecordAdd(duration time.Duration, err error)
	RecordUpdate(duration time.Duration, err error)
	RecordDelete(duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordAdd(time.Duration, error)    {}
func (noopMetrics) RecordUpdate(time.Duration, error) {}
func (noopMetrics) RecordDelete(time.Duration, error) {}

type options struct {
	logger   *slog.Logger
	metrics  MetricsRecorder
	newID    func() string
	space    *coordspace.Watchable
	readonly bool
}

// Option configures a Store.
type Option func(*options)

// WithLogger sets the logger used for diagnostics and policy refusals.
// If nil is passed, output is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		o.logger = l
	}
}

// WithMetrics sets the recorder notified after every Add, Update and Delete.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m == nil {
			m = noopMetrics{}
		}
		o.metrics = m
	}
}

// WithIDGenerator overrides the function producing ids for annotations
// added without one.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithCoordinateSpace binds the store to a watchable input space. Stored
// vectors follow changes of the space lazily, the next time the store is
// accessed. The space's rank overrides the schema rank.
func WithCoordinateSpace(w *coordspace.Watchable) Option {
	return func(o *options) {
		o.space = w
	}
}

// WithReadonly makes every public mutation fail with ErrReadOnly.
func WithReadonly() Option {
	return func(o *options) {
		o.readonly = true
	}
}

func defaultOptions() options {
	return options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: noopMetrics{},
		newID:   annotation.NewID,
	}
}

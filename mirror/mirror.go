package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrNoState is returned by Pull when nothing has been pushed yet.
var ErrNoState = errors.New("mirror: no state stored")

type envelope struct {
	Origin   string            `json:"origin"`
	PushedAt time.Time         `json:"pushed_at"`
	State    gojson.RawMessage `json:"state"`
}

type options struct {
	origin  string
	limit   rate.Limit
	burst   int
	logger  *slog.Logger
	onError func(error)
}

// Option configures a Mirror.
type Option func(*options)

// WithOrigin sets the identifier stamped on pushes. Default: a random UUID.
func WithOrigin(origin string) Option {
	return func(o *options) {
		if origin != "" {
			o.origin = origin
		}
	}
}

// WithRateLimit bounds how often Run pushes local changes.
// Default: one push per 200ms.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.limit = limit
		o.burst = max(burst, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithErrorHandler receives push and pull failures inside Run, which keeps
// running after them.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Mirror syncs one Target with a Redis key.
type Mirror struct {
	client  *redis.Client
	key     string
	channel string
	target  Target
	opts    options

	mu       sync.Mutex // serializes target access between push and pull
	dirty    chan struct{}
	applying atomic.Bool
	pushes   atomic.Int64
	pulls    atomic.Int64
	remove   func()
}

// New creates a mirror of target under key. It starts tracking local
// changes immediately; call Close to stop.
func New(client *redis.Client, key string, target Target, optFns ...Option) *Mirror {
	o := options{
		origin: uuid.NewString(),
		limit:  rate.Every(200 * time.Millisecond),
		burst:  1,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	m := &Mirror{
		client:  client,
		key:     key,
		channel: key + ":updates",
		target:  target,
		opts:    o,
		dirty:   make(chan struct{}, 1),
	}
	m.remove = target.OnChange(m.markDirty)
	return m
}

// Connect parses a redis:// URL, checks the server and returns a mirror.
func Connect(ctx context.Context, redisURL, key string, target Target, optFns ...Option) (*Mirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(client, key, target, optFns...), nil
}

// Origin returns the identifier stamped on this mirror's pushes.
func (m *Mirror) Origin() string {
	return m.opts.origin
}

// Stats returns how many pushes and pulls completed.
func (m *Mirror) Stats() (pushes, pulls int64) {
	return m.pushes.Load(), m.pulls.Load()
}

// Close stops tracking local changes and closes the Redis client.
func (m *Mirror) Close() error {
	if m.remove != nil {
		m.remove()
		m.remove = nil
	}
	return m.client.Close()
}

func (m *Mirror) markDirty() {
	if m.applying.Load() {
		return
	}
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

// Push stores the target's committed state and announces it.
func (m *Mirror) Push(ctx context.Context) error {
	m.mu.Lock()
	state, err := m.target.ToJSON()
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	payload, err := gojson.Marshal(envelope{
		Origin:   m.opts.origin,
		PushedAt: time.Now().UTC(),
		State:    state,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.key, payload, 0)
		pipe.Publish(ctx, m.channel, m.opts.origin)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", m.key, err)
	}

	m.pushes.Add(1)
	m.opts.logger.Debug("mirror pushed", slog.String("key", m.key), slog.Int("bytes", len(payload)))
	return nil
}

// Pull replaces the target's content with the stored state.
func (m *Mirror) Pull(ctx context.Context) error {
	raw, err := m.client.Get(ctx, m.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNoState
	}
	if err != nil {
		return fmt.Errorf("pull %s: %w", m.key, err)
	}

	var env envelope
	if err := gojson.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s: %w", m.key, err)
	}

	m.mu.Lock()
	m.applying.Store(true)
	err = m.target.Replace(env.State)
	m.applying.Store(false)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("apply %s from %s: %w", m.key, env.Origin, err)
	}

	m.pulls.Add(1)
	m.opts.logger.Debug("mirror pulled", slog.String("key", m.key), slog.String("origin", env.Origin))
	return nil
}

// Run pushes local changes and pulls remote ones until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	sub := m.client.Subscribe(ctx, m.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.channel, err)
	}

	limiter := rate.NewLimiter(m.opts.limit, m.opts.burst)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		msgs := sub.Channel()
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-msgs:
				if !ok {
					return nil
				}
				if msg.Payload == m.opts.origin {
					continue
				}
				m.report(m.Pull(gctx))
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-m.dirty:
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				m.report(m.Push(gctx))
			}
		}
	})

	return g.Wait()
}

func (m *Mirror) report(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	m.opts.logger.Warn("mirror sync failed", slog.String("key", m.key), slog.String("error", err.Error()))
	if m.opts.onError != nil {
		m.opts.onError(err)
	}
}

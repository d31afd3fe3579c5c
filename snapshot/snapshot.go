package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/brainsharer/annostore/blobstore"
	"github.com/brainsharer/annostore/codec"
	"github.com/brainsharer/annostore/store"
	"golang.org/x/sync/errgroup"
)

const (
	// CurrentName is the blob holding the name of the latest snapshot.
	CurrentName = "CURRENT"
	// Dir is the blob prefix under which snapshots are written.
	Dir = "snapshots/"

	suffix = ".snap"
)

type options struct {
	compression Compression
	codec       codec.Codec
	blockSize   int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures snapshot encoding.
type Option func(*options)

// WithCompression selects the payload compression. Default: zstd.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec selects the manifest codec. Default: codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithBlockSize sets the uncompressed size of payload blocks. Default: 256KB.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

// WithLogger sets the logger for Save, Load and Prune.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression: CompressionZSTD,
		codec:       codec.Default,
		blockSize:   256 * 1024,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Encode captures the committed records of s as a snapshot file.
func Encode(s *store.Store, optFns ...Option) ([]byte, *Manifest, error) {
	o := applyOptions(optFns)

	state, err := s.ToJSON()
	if err != nil {
		return nil, nil, err
	}

	m := newManifest(s.Schema())
	m.CreatedAt = o.now().UTC()
	for a := range s.All() {
		if s.IsPending(a.ID) {
			continue
		}
		m.Count++
		m.TypeCounts[a.Type.String()]++
	}

	data, err := encodeFile(m, state, o.codec, o.compression, o.blockSize)
	if err != nil {
		return nil, nil, err
	}
	return data, m, nil
}

// Restore replaces the content of s with the snapshot's records.
func (snap *Snapshot) Restore(s *store.Store) error {
	if err := snap.Manifest.Compatible(s.Schema()); err != nil {
		return err
	}
	return s.RestoreState(snap.State)
}

// Save writes a new snapshot of s and points CURRENT at it.
func Save(ctx context.Context, bs blobstore.Store, s *store.Store, optFns ...Option) (string, *Manifest, error) {
	data, m, err := Encode(s, optFns...)
	if err != nil {
		return "", nil, err
	}
	name, err := Commit(ctx, bs, data, m, optFns...)
	if err != nil {
		return "", nil, err
	}
	return name, m, nil
}

// Commit writes an encoded snapshot under the next sequence number and
// points CURRENT at it. It lets callers encode under a lock and upload
// outside of it.
func Commit(ctx context.Context, bs blobstore.Store, data []byte, m *Manifest, optFns ...Option) (string, error) {
	o := applyOptions(optFns)

	unlock, err := lock(ctx, bs)
	if err != nil {
		return "", err
	}
	defer func() { _ = unlock() }()

	names, err := List(ctx, bs)
	if err != nil {
		return "", err
	}
	var seq uint64
	if len(names) > 0 {
		seq, _ = sequence(names[len(names)-1])
	}
	name := fmt.Sprintf("%s%020d%s", Dir, seq+1, suffix)

	w, err := bs.Create(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	if err := bs.Put(ctx, CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("commit %s: %w", name, err)
	}

	o.logger.Info("snapshot saved",
		slog.String("name", name),
		slog.Int("count", m.Count),
		slog.Int("bytes", len(data)),
		slog.String("compression", m.Compression),
	)
	return name, nil
}

// Latest returns the name CURRENT points at, or ErrNoSnapshot.
func Latest(ctx context.Context, bs blobstore.Store) (string, error) {
	data, err := blobstore.ReadAll(ctx, bs, CurrentName)
	if err != nil {
		if blobstore.IsNotFound(err) {
			return "", ErrNoSnapshot
		}
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoSnapshot
	}
	return name, nil
}

// Read fetches and decodes one snapshot.
func Read(ctx context.Context, bs blobstore.Store, name string) (*Snapshot, error) {
	data, err := blobstore.ReadAll(ctx, bs, name)
	if err != nil {
		return nil, err
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return snap, nil
}

// Load restores s from the snapshot CURRENT points at.
func Load(ctx context.Context, bs blobstore.Store, s *store.Store, optFns ...Option) (*Manifest, error) {
	o := applyOptions(optFns)

	name, err := Latest(ctx, bs)
	if err != nil {
		return nil, err
	}
	snap, err := Read(ctx, bs, name)
	if err != nil {
		return nil, err
	}
	if err := snap.Restore(s); err != nil {
		return nil, fmt.Errorf("restore %s: %w", name, err)
	}

	o.logger.Info("snapshot loaded",
		slog.String("name", name),
		slog.Int("count", snap.Manifest.Count),
	)
	return snap.Manifest, nil
}

// List returns snapshot names in ascending sequence order.
func List(ctx context.Context, bs blobstore.Store) ([]string, error) {
	all, err := bs.List(ctx, Dir)
	if err != nil {
		return nil, err
	}
	names := all[:0]
	for _, n := range all {
		if _, ok := sequence(n); ok {
			names = append(names, n)
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		sa, _ := sequence(a)
		sb, _ := sequence(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	return names, nil
}

// Prune deletes all but the newest keep snapshots. The snapshot CURRENT
// points at is always kept.
func Prune(ctx context.Context, bs blobstore.Store, keep int, optFns ...Option) ([]string, error) {
	o := applyOptions(optFns)

	unlock, err := lock(ctx, bs)
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock() }()

	names, err := List(ctx, bs)
	if err != nil {
		return nil, err
	}
	current, err := Latest(ctx, bs)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	keep = max(keep, 0)
	if len(names) <= keep {
		return nil, nil
	}
	var doomed []string
	for _, n := range names[:len(names)-keep] {
		if n != current {
			doomed = append(doomed, n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, n := range doomed {
		g.Go(func() error {
			return bs.Delete(gctx, n)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(doomed) > 0 {
		o.logger.Info("snapshots pruned", slog.Int("deleted", len(doomed)), slog.Int("kept", len(names)-len(doomed)))
	}
	return doomed, nil
}

func lock(ctx context.Context, bs blobstore.Store) (func() error, error) {
	l, ok := bs.(blobstore.Locker)
	if !ok {
		return func() error { return nil }, nil
	}
	unlock, err := l.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return unlock, nil
}

func sequence(name string) (uint64, bool) {
	base := path.Base(name)
	if !strings.HasSuffix(base, suffix) {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(base, suffix), 10, 64)
	return n, err == nil
}

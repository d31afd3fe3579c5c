package annostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/blobstore"
	"github.com/brainsharer/annostore/mirror"
	"github.com/brainsharer/annostore/query"
	"github.com/brainsharer/annostore/serialize"
	"github.com/brainsharer/annostore/snapshot"
	"github.com/brainsharer/annostore/store"
)

// DB is a goroutine-safe annotation layer with optional snapshot
// persistence and Redis mirroring.
type DB struct {
	mu     sync.Mutex
	store  *store.Store
	closed bool

	blobs    blobstore.Store
	snapOpts []snapshot.Option
	mirror   *mirror.Mirror

	metrics MetricsCollector
	logger  *Logger
}

var _ mirror.Target = (*DB)(nil)

// Open creates a DB for schema. With a blob store the latest snapshot is
// restored; a missing snapshot is not an error.
func Open(ctx context.Context, schema annotation.Schema, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	storeOpts := append([]store.Option{
		store.WithLogger(o.logger.Logger),
		store.WithMetrics(o.metricsCollector),
	}, o.storeOptions...)
	s, err := store.New(schema, storeOpts...)
	if err != nil {
		return nil, translateError(err)
	}

	db := &DB{
		store:    s,
		blobs:    o.blobs,
		snapOpts: append([]snapshot.Option{snapshot.WithLogger(o.logger.Logger)}, o.snapshotOptions...),
		metrics:  o.metricsCollector,
		logger:   o.logger,
	}

	if db.blobs != nil && o.loadOnOpen {
		if _, err := db.Load(ctx); err != nil && !errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
	}

	mirrorOpts := append([]mirror.Option{mirror.WithLogger(o.logger.WithLayer(o.mirrorKey).Logger)}, o.mirrorOptions...)
	switch {
	case o.redisClient != nil:
		db.mirror = mirror.New(o.redisClient, o.mirrorKey, db, mirrorOpts...)
	case o.redisURL != "":
		m, err := mirror.Connect(ctx, o.redisURL, o.mirrorKey, db, mirrorOpts...)
		if err != nil {
			return nil, err
		}
		db.mirror = m
	}

	return db, nil
}

// Close stops mirroring. Later calls return ErrClosed.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	m := db.mirror
	db.mu.Unlock()

	if m != nil {
		return m.Close()
	}
	return nil
}

// Schema returns the layer schema.
func (db *DB) Schema() annotation.Schema {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Schema()
}

// View runs fn with exclusive access to the underlying store. fn must not
// retain the store or any reference past its return.
func (db *DB) View(fn func(s *store.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return translateError(fn(db.store))
}

func (db *DB) withRef(id string, fn func(*store.Reference) error) error {
	return db.View(func(s *store.Store) error {
		if s.Get(id) == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		ref := s.GetReference(id)
		defer ref.Dispose()
		return fn(ref)
	})
}

// Add inserts a copy of a at the top level and returns its id. Use AddChild
// to insert into a collection.
func (db *DB) Add(ctx context.Context, a *annotation.Annotation, optFns ...store.AddOption) (string, error) {
	var id string
	err := db.View(func(s *store.Store) error {
		ref, err := s.Add(a, optFns...)
		if err != nil {
			return err
		}
		id = ref.ID()
		ref.Dispose()
		return nil
	})
	db.logger.LogMutation(ctx, "add", id, err)
	return id, err
}

// AddChild inserts a copy of a under the collection parentID.
func (db *DB) AddChild(ctx context.Context, parentID string, a *annotation.Annotation, optFns ...store.AddOption) (string, error) {
	var id string
	err := db.withRef(parentID, func(parent *store.Reference) error {
		ref, err := db.store.Add(a, append(optFns[:len(optFns):len(optFns)], store.WithParent(parent))...)
		if err != nil {
			return err
		}
		id = ref.ID()
		ref.Dispose()
		return nil
	})
	db.logger.LogMutation(ctx, "add", id, err)
	return id, err
}

// Update replaces the record id with a copy of a.
func (db *DB) Update(ctx context.Context, id string, a *annotation.Annotation) error {
	err := db.withRef(id, func(ref *store.Reference) error {
		return db.store.Update(ref, a)
	})
	db.logger.LogMutation(ctx, "update", id, err)
	return err
}

// Delete removes id and its descendants. Lines of a polygon are only
// removed with fromParent set.
func (db *DB) Delete(ctx context.Context, id string, fromParent bool) error {
	err := db.View(func(s *store.Store) error {
		ref := s.GetReference(id)
		defer ref.Dispose()
		return s.Delete(ref, fromParent)
	})
	db.logger.LogMutation(ctx, "delete", id, err)
	return err
}

// Commit clears the pending status of id.
func (db *DB) Commit(id string) error {
	return db.withRef(id, func(ref *store.Reference) error {
		return db.store.Commit(ref)
	})
}

// Get returns a copy of the record id, or ErrNotFound.
func (db *DB) Get(id string) (*annotation.Annotation, error) {
	var out *annotation.Annotation
	err := db.View(func(s *store.Store) error {
		a := s.Get(id)
		if a == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		out = a.Clone()
		return nil
	})
	return out, err
}

// List returns copies of every record in insertion order.
func (db *DB) List() ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	err := db.View(func(s *store.Store) error {
		out = make([]*annotation.Annotation, 0, s.Len())
		for a := range s.All() {
			out = append(out, a.Clone())
		}
		return nil
	})
	return out, err
}

// Subtree returns copies of id and all its descendants in pre-order.
func (db *DB) Subtree(id string) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	err := db.View(func(s *store.Store) error {
		for _, a := range s.GetAllAnnsUnderRoot(id) {
			out = append(out, a.Clone())
		}
		return nil
	})
	return out, err
}

// Select returns copies of the records matching a query expression, in
// insertion order. See package query for the expression language.
func (db *DB) Select(expr string) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	err := db.View(func(s *store.Store) error {
		f, err := query.Compile(expr, s.Schema())
		if err != nil {
			return err
		}
		matched, err := f.Select(s.All())
		for _, a := range matched {
			out = append(out, a.Clone())
		}
		return err
	})
	return out, err
}

// SelectJSON encodes the committed records matching a query expression as a
// JSON array, in the shape ToJSON produces. Pending records are left out.
func (db *DB) SelectJSON(expr string) ([]byte, error) {
	var data []byte
	err := db.View(func(s *store.Store) error {
		f, err := query.Compile(expr, s.Schema())
		if err != nil {
			return err
		}
		schema := s.Schema()
		var out []gojson.RawMessage
		for a := range s.All() {
			if s.IsPending(a.ID) {
				continue
			}
			ok, err := f.Match(a)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			raw, err := annotation.MarshalJSON(a, schema)
			if err != nil {
				return fmt.Errorf("annotation %q: %w", a.ID, err)
			}
			out = append(out, raw)
		}
		if out == nil {
			out = []gojson.RawMessage{}
		}
		data, err = gojson.Marshal(out)
		return err
	})
	return data, err
}

// Len returns the number of records, pending ones included.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Len()
}

// UpdateColor recolors id and its descendants.
func (db *DB) UpdateColor(id string, color uint32) error {
	return db.withRef(id, func(ref *store.Reference) error {
		return db.store.UpdateColor(ref, color)
	})
}

// UpdateVisibility sets the visibility of id and its descendants.
func (db *DB) UpdateVisibility(id string, visibility float64) error {
	return db.withRef(id, func(ref *store.Reference) error {
		return db.store.UpdateVisibility(ref, visibility)
	})
}

// UpdateDescription replaces the description of id.
func (db *DB) UpdateDescription(id, description string) error {
	return db.withRef(id, func(ref *store.Reference) error {
		return db.store.UpdateDescription(ref, description)
	})
}

// UpdateCellColors recolors every cell matching description and category.
func (db *DB) UpdateCellColors(color uint32, description, category string) error {
	return db.View(func(s *store.Store) error {
		return s.UpdateCellColors(color, description, category)
	})
}

// UpdateCOMColors recolors every center of mass matching description.
func (db *DB) UpdateCOMColors(color uint32, description string) error {
	return db.View(func(s *store.Store) error {
		return s.UpdateCOMColors(color, description)
	})
}

// Reveal opens every collection above id.
func (db *DB) Reveal(id string) error {
	return db.View(func(s *store.Store) error {
		return s.MakeAllParentsVisible(id)
	})
}

// Pack returns the binary layout of every record.
func (db *DB) Pack() (*serialize.Serialized, error) {
	var out *serialize.Serialized
	err := db.View(func(s *store.Store) error {
		start := time.Now()
		out = s.Pack()
		db.metrics.RecordSerialize(s.Len(), len(out.Data), time.Since(start))
		return nil
	})
	return out, err
}

// ToJSON encodes every committed record as a JSON array.
func (db *DB) ToJSON() ([]byte, error) {
	var out []byte
	err := db.View(func(s *store.Store) error {
		var err error
		out, err = s.ToJSON()
		return err
	})
	return out, err
}

// Replace swaps the content of the DB for the records of a JSON array.
// Nothing changes when data is malformed.
func (db *DB) Replace(data []byte) error {
	return db.View(func(s *store.Store) error {
		return s.RestoreState(data)
	})
}

// OnChange registers fn to run after every change. fn runs while the DB is
// locked and must not call back into it.
func (db *DB) OnChange(fn func()) func() {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Changed.Add(fn)
}

// Save writes a snapshot of the committed records. The upload happens
// outside the DB lock.
func (db *DB) Save(ctx context.Context) (string, error) {
	if db.blobs == nil {
		return "", ErrNoBlobStore
	}
	start := time.Now()

	var (
		data []byte
		m    *snapshot.Manifest
	)
	err := db.View(func(s *store.Store) error {
		var err error
		data, m, err = snapshot.Encode(s, db.snapOpts...)
		return err
	})
	var name string
	if err == nil {
		name, err = snapshot.Commit(ctx, db.blobs, data, m, db.snapOpts...)
	}

	count := 0
	if m != nil {
		count = m.Count
	}
	db.metrics.RecordSave(count, time.Since(start), err)
	db.logger.LogSnapshot(ctx, "save", count, err)
	return name, err
}

// Load replaces the content of the DB with the latest snapshot.
func (db *DB) Load(ctx context.Context) (*snapshot.Manifest, error) {
	if db.blobs == nil {
		return nil, ErrNoBlobStore
	}
	start := time.Now()

	m, err := db.load(ctx)

	count := 0
	if m != nil {
		count = m.Count
	}
	db.metrics.RecordLoad(count, time.Since(start), err)
	if !errors.Is(err, ErrNoSnapshot) {
		db.logger.LogSnapshot(ctx, "load", count, err)
	}
	return m, err
}

func (db *DB) load(ctx context.Context) (*snapshot.Manifest, error) {
	name, err := snapshot.Latest(ctx, db.blobs)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.Read(ctx, db.blobs, name)
	if err != nil {
		return nil, err
	}
	err = db.View(func(s *store.Store) error {
		return snap.Restore(s)
	})
	var inc *ErrIncompatibleSnapshot
	if errors.As(err, &inc) {
		inc.Name = name
	}
	if err != nil {
		return nil, err
	}
	return snap.Manifest, nil
}

// Snapshots lists the stored snapshots, oldest first.
func (db *DB) Snapshots(ctx context.Context) ([]string, error) {
	if db.blobs == nil {
		return nil, ErrNoBlobStore
	}
	return snapshot.List(ctx, db.blobs)
}

// Prune deletes all but the newest keep snapshots.
func (db *DB) Prune(ctx context.Context, keep int) ([]string, error) {
	if db.blobs == nil {
		return nil, ErrNoBlobStore
	}
	return snapshot.Prune(ctx, db.blobs, keep, db.snapOpts...)
}

// Push publishes the committed records to the mirror.
func (db *DB) Push(ctx context.Context) error {
	if db.mirror == nil {
		return ErrNoMirror
	}
	return translateError(db.mirror.Push(ctx))
}

// Pull replaces the content of the DB with the mirrored state.
func (db *DB) Pull(ctx context.Context) error {
	if db.mirror == nil {
		return ErrNoMirror
	}
	return translateError(db.mirror.Pull(ctx))
}

// Sync pushes local changes and adopts remote ones until ctx is done.
func (db *DB) Sync(ctx context.Context) error {
	if db.mirror == nil {
		return ErrNoMirror
	}
	return db.mirror.Run(ctx)
}

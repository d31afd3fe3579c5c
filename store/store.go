package store

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/coordspace"
	"github.com/brainsharer/annostore/property"
	"github.com/brainsharer/annostore/serialize"
)

type entry struct {
	a   *annotation.Annotation
	ord uint32
}

// Store owns the annotations of one layer.
type Store struct {
	// Changed fires after every structural change of the store.
	Changed NullarySignal
	// ChildAdded fires when a record becomes listed: top-level records on
	// add and descendants of visible collections.
	ChildAdded Signal[*annotation.Annotation]
	// ChildUpdated fires after a record is replaced.
	ChildUpdated Signal[*annotation.Annotation]
	// ChildDeleted fires with the id of a removed or hidden record.
	ChildDeleted Signal[string]

	opts   options
	log    *slog.Logger
	schema annotation.Schema
	layout *property.Layout

	records map[string]entry
	// seq maps ordinals to ids in insertion order; removed slots are "".
	seq     []string
	live    *ordinalSet
	pending *ordinalSet

	refs        map[string]*Reference
	loading     bool
	dispatching int

	space        coordspace.Space
	spaceVersion uint64
}

// New returns an empty store for schema.
func New(schema annotation.Schema, optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	schema.Relationships = slices.Clone(schema.Relationships)
	schema.Properties = slices.Clone(schema.Properties)

	s := &Store{
		opts:    opts,
		log:     opts.logger.With("component", "annotation-store"),
		records: make(map[string]entry),
		live:    newOrdinalSet(),
		pending: newOrdinalSet(),
		refs:    make(map[string]*Reference),
	}
	if opts.space != nil {
		s.space, s.spaceVersion = opts.space.Load()
		schema.Rank = s.space.Rank()
	}
	if schema.Rank <= 0 {
		return nil, fmt.Errorf("invalid rank %d", schema.Rank)
	}
	if err := property.Validate(schema.Properties); err != nil {
		return nil, err
	}
	s.schema = schema
	s.layout = property.NewLayout(schema.Rank, schema.Properties)
	return s, nil
}

// NewDataBoundsStore returns a read-only store holding the bounding box of a
// volume's data extent.
func NewDataBoundsStore(lower, upper []float32, optFns ...Option) (*Store, error) {
	s, err := New(annotation.Schema{Rank: len(lower)}, optFns...)
	if err != nil {
		return nil, err
	}
	box, err := s.normalize(annotation.NewDataBoundsBox(lower, upper))
	if err != nil {
		return nil, err
	}
	if err := s.insert(box, addOptions{}); err != nil {
		return nil, err
	}
	s.opts.readonly = true
	return s, nil
}

// Schema returns the rank, relationships and property specs of the store.
func (s *Store) Schema() annotation.Schema {
	s.ensureUpdated()
	return s.schema
}

// Rank returns the dimensionality of stored vectors.
func (s *Store) Rank() int {
	s.ensureUpdated()
	return s.schema.Rank
}

// Layout returns the packed property layout at the current rank.
func (s *Store) Layout() *property.Layout {
	s.ensureUpdated()
	return s.layout
}

// Readonly reports whether mutations are refused.
func (s *Store) Readonly() bool {
	return s.opts.readonly
}

// AddOption configures a single Add.
type AddOption func(*addOptions)

type addOptions struct {
	pending  bool
	parent   *Reference
	index    int
	hasIndex bool
}

// AsPending adds the record uncommitted: it is left out of ToJSON until
// Commit is called.
func AsPending() AddOption {
	return func(o *addOptions) { o.pending = true }
}

// WithParent links the new record as a child of the collection parent
// refers to.
func WithParent(parent *Reference) AddOption {
	return func(o *addOptions) { o.parent = parent }
}

// AtIndex sets the position of the new record in its parent's child list.
// The default is to append.
func AtIndex(i int) AddOption {
	return func(o *addOptions) {
		o.index = i
		o.hasIndex = true
	}
}

// Add inserts a copy of a and returns a reference to it. A record without an
// id receives a fresh one. The returned reference must be disposed.
func (s *Store) Add(a *annotation.Annotation, optFns ...AddOption) (ref *Reference, err error) {
	start := time.Now()
	defer func() { s.opts.metrics.RecordAdd(time.Since(start), err) }()

	if err = s.beginMutation(); err != nil {
		return nil, err
	}
	var o addOptions
	for _, fn := range optFns {
		fn(&o)
	}
	if a, err = s.normalize(a); err != nil {
		return nil, err
	}
	if err = s.insert(a, o); err != nil {
		return nil, err
	}
	return s.GetReference(a.ID), nil
}

// Update replaces the record ref points to with a copy of a. It fails with
// ErrDeleted when the record no longer exists.
func (s *Store) Update(ref *Reference, a *annotation.Annotation) (err error) {
	start := time.Now()
	defer func() { s.opts.metrics.RecordUpdate(time.Since(start), err) }()

	if err = s.beginMutation(); err != nil {
		return err
	}
	cur := s.get(ref.id)
	if cur == nil {
		return fmt.Errorf("%w: %q", ErrDeleted, ref.id)
	}
	if a, err = s.normalize(a); err != nil {
		return err
	}
	if a.Type != cur.Type {
		s.log.Info("refusing to change annotation type", "id", cur.ID, "from", cur.Type.String(), "to", a.Type.String())
		return nil
	}
	// Linkage is owned by the store; only Add and Delete change it.
	a.ID = cur.ID
	a.ParentID = cur.ParentID
	if annotation.IsCollection(a) {
		a.ChildIDs = slices.Clone(cur.ChildIDs)
		s.deriveSource(a)
	}
	s.replace(a)
	return nil
}

// Delete removes the record ref points to together with all its
// descendants. Lines owned by a polygon are only removed when fromParent is
// set; otherwise the call is refused and logged. Deleting a missing record
// is a no-op.
func (s *Store) Delete(ref *Reference, fromParent bool) (err error) {
	start := time.Now()
	defer func() { s.opts.metrics.RecordDelete(time.Since(start), err) }()

	if err = s.beginMutation(); err != nil {
		return err
	}
	cur := s.get(ref.id)
	if cur == nil {
		return nil
	}
	if cur.ParentID != "" {
		parent := s.get(cur.ParentID)
		if annotation.HasDummyChildren(parent) && !fromParent {
			s.log.Info("refusing to delete child of polygon", "id", cur.ID, "parent", parent.ID)
			return nil
		}
		if annotation.IsCollection(parent) {
			np := parent.Clone()
			if i := slices.Index(np.ChildIDs, cur.ID); i >= 0 {
				np.ChildIDs = slices.Delete(np.ChildIDs, i, i+1)
			}
			s.deriveSource(np)
			s.replace(np)
		}
	}
	if annotation.IsCollection(cur) {
		for _, d := range s.postOrder(cur.ID) {
			s.remove(d)
		}
	}
	s.remove(cur.ID)
	s.maybeCompact()
	return nil
}

// Commit clears the pending status of the record ref points to and, for a
// polygon, of its lines.
func (s *Store) Commit(ref *Reference) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	e, ok := s.records[ref.id]
	if !ok {
		return nil
	}
	s.pending.remove(e.ord)
	if e.a.Type == annotation.TypePolygon {
		for _, id := range e.a.ChildIDs {
			if ce, ok := s.records[id]; ok {
				s.pending.remove(ce.ord)
			}
		}
	}
	s.emit(s.Changed.dispatch)
	return nil
}

// IsPending reports whether id was added uncommitted and not yet committed.
func (s *Store) IsPending(id string) bool {
	s.ensureUpdated()
	e, ok := s.records[id]
	return ok && s.pending.contains(e.ord)
}

// Get returns the record with id, or nil.
func (s *Store) Get(id string) *annotation.Annotation {
	s.ensureUpdated()
	return s.get(id)
}

// All iterates the records in insertion order.
func (s *Store) All() iter.Seq[*annotation.Annotation] {
	s.ensureUpdated()
	return func(yield func(*annotation.Annotation) bool) {
		for _, id := range s.ids() {
			if a := s.get(id); a != nil && !yield(a) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// GetReference returns the handle for id, incrementing its count. Handles
// for unknown ids are StateDeleted, or StateLoading after MarkLoading.
func (s *Store) GetReference(id string) *Reference {
	s.ensureUpdated()
	if r, ok := s.refs[id]; ok {
		r.refs++
		return r
	}
	r := &Reference{id: id, store: s, refs: 1}
	if a := s.get(id); a != nil {
		r.set(a)
	} else if s.loading {
		r.state = StateLoading
	} else {
		r.state = StateDeleted
	}
	s.refs[id] = r
	return r
}

// RefCount returns the outstanding count of the handle for id.
func (s *Store) RefCount(id string) int {
	if r, ok := s.refs[id]; ok {
		return r.refs
	}
	return 0
}

// MarkLoading flags the store as waiting for RestoreState. Until then,
// handles to unknown ids report StateLoading.
func (s *Store) MarkLoading() {
	s.loading = true
	for _, r := range s.refs {
		if r.state == StateDeleted {
			r.state = StateLoading
		}
	}
}

// Clear removes every record without dispatching per-record events.
func (s *Store) Clear() error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	s.reset()
	s.emit(func() {
		for _, id := range s.refIDs() {
			if r, ok := s.refs[id]; ok {
				r.Changed.dispatch()
			}
		}
		s.Changed.dispatch()
	})
	return nil
}

// RestoreState replaces the contents of the store with the records of a
// JSON array, then resolves every outstanding handle. Nothing is changed
// when data is malformed.
func (s *Store) RestoreState(data []byte) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	anns, err := annotation.RestoreArray(data, s.schema)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(anns))
	for i, a := range anns {
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("annotation %d: %w: %q", i, ErrDuplicateID, a.ID)
		}
		seen[a.ID] = struct{}{}
		if anns[i], err = s.normalize(a); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
	}

	s.reset()
	for _, a := range anns {
		if err := s.insert(a, addOptions{}); err != nil {
			return err
		}
	}
	s.loading = false
	for _, r := range s.refs {
		r.set(s.get(r.id))
	}
	s.emit(func() {
		for _, id := range s.refIDs() {
			if r, ok := s.refs[id]; ok {
				r.Changed.dispatch()
			}
		}
		s.Changed.dispatch()
	})
	return nil
}

// ToJSON encodes every committed record as a JSON array in insertion order.
func (s *Store) ToJSON() ([]byte, error) {
	s.ensureUpdated()
	out := make([]gojson.RawMessage, 0, len(s.records))
	for ord := range s.live.without(s.pending) {
		a := s.records[s.seq[ord]].a
		data, err := annotation.MarshalJSON(a, s.schema)
		if err != nil {
			return nil, fmt.Errorf("annotation %q: %w", a.ID, err)
		}
		out = append(out, data)
	}
	return gojson.Marshal(out)
}

// Pack lays out every record, pending ones included, in the binary format
// consumed by renderers.
func (s *Store) Pack() *serialize.Serialized {
	s.ensureUpdated()
	ser := serialize.New(s.layout)
	for ord := range s.live.ascending() {
		ser.Add(s.records[s.seq[ord]].a)
	}
	return ser.Serialize()
}

func (s *Store) get(id string) *annotation.Annotation {
	if e, ok := s.records[id]; ok {
		return e.a
	}
	return nil
}

func (s *Store) ids() []string {
	ids := make([]string, 0, len(s.records))
	for ord := range s.live.ascending() {
		ids = append(ids, s.seq[ord])
	}
	return ids
}

func (s *Store) refIDs() []string {
	ids := make([]string, 0, len(s.refs))
	for id := range s.refs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) beginMutation() error {
	if s.opts.readonly {
		return ErrReadOnly
	}
	if s.dispatching > 0 {
		return ErrReentrantMutation
	}
	s.ensureUpdated()
	return nil
}

// emit runs fn with mutation locked out.
func (s *Store) emit(fn func()) {
	s.dispatching++
	defer func() { s.dispatching-- }()
	fn()
}

// normalize returns a copy of a conforming to the schema: snapped
// positions, a full property vector and one segment list per relationship.
func (s *Store) normalize(a *annotation.Annotation) (*annotation.Annotation, error) {
	if a == nil {
		return nil, fmt.Errorf("nil annotation")
	}
	if int(a.Type) >= annotation.NumTypes {
		return nil, fmt.Errorf("invalid annotation type %d", a.Type)
	}
	a = a.Clone()

	var geomErr error
	annotation.VisitGeometry(a, func(vec []float32, _ bool) {
		if len(vec) != s.schema.Rank && geomErr == nil {
			geomErr = fmt.Errorf("%w: %s %q has a vector of length %d, store rank is %d",
				ErrRankMismatch, a.Type, a.ID, len(vec), s.schema.Rank)
		}
	})
	if geomErr != nil {
		return nil, geomErr
	}
	annotation.SnapZ(a)

	specs := s.schema.Properties
	if len(specs) == 0 {
		a.Properties = nil
	} else {
		props := make([]float64, len(specs))
		for i, spec := range specs {
			v := spec.Default
			if i < len(a.Properties) {
				v = a.Properties[i]
			}
			props[i] = spec.Type.Normalize(v)
		}
		a.Properties = props
	}

	if n := len(s.schema.Relationships); n == 0 {
		a.RelatedSegments = nil
	} else {
		segs := make([][]uint64, n)
		for i := range segs {
			if i < len(a.RelatedSegments) && a.RelatedSegments[i] != nil {
				segs[i] = a.RelatedSegments[i]
			} else {
				segs[i] = []uint64{}
			}
		}
		a.RelatedSegments = segs
	}

	if annotation.IsCollection(a) {
		if a.ChildIDs == nil {
			a.ChildIDs = []string{}
		}
	} else {
		a.ChildIDs = nil
		a.ChildrenVisible = false
	}
	if a.Type != annotation.TypeCell {
		a.Category = ""
	}
	return a, nil
}

// insert adds a normalized record.
func (s *Store) insert(a *annotation.Annotation, o addOptions) error {
	if a.ID == "" {
		a.ID = s.opts.newID()
	} else if _, ok := s.records[a.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, a.ID)
	}

	var parent *annotation.Annotation
	if o.parent != nil {
		switch p := s.get(o.parent.id); {
		case !annotation.IsCollection(p):
			s.log.Info("parent is not a collection, adding without linkage", "id", a.ID, "parent", o.parent.id)
			a.ParentID = ""
		case !acceptsChild(p, a):
			s.log.Info("parent does not take this child type, adding without linkage",
				"id", a.ID, "type", a.Type.String(), "parent", p.ID, "parent_type", p.Type.String())
			a.ParentID = ""
		default:
			parent = p
			a.ParentID = p.ID
		}
	}

	ord := uint32(len(s.seq))
	s.seq = append(s.seq, a.ID)
	s.records[a.ID] = entry{a: a, ord: ord}
	s.live.add(ord)
	if o.pending {
		s.pending.add(ord)
	}
	ref := s.refs[a.ID]
	if ref != nil {
		ref.set(a)
	}

	if parent != nil {
		np := parent.Clone()
		idx := len(np.ChildIDs)
		if o.hasIndex {
			idx = max(0, min(o.index, len(np.ChildIDs)))
		}
		np.ChildIDs = slices.Insert(np.ChildIDs, idx, a.ID)
		s.deriveSource(np)
		s.replace(np)
	}

	s.emit(func() {
		s.Changed.dispatch()
		if ref != nil {
			ref.Changed.dispatch()
		}
		if a.ParentID == "" {
			s.ChildAdded.dispatch(a)
		}
		s.cascade(a)
	})
	return nil
}

// replace stores a over the existing record with the same id and
// propagates the change.
func (s *Store) replace(a *annotation.Annotation) {
	e := s.records[a.ID]
	e.a = a
	s.records[a.ID] = e
	ref := s.refs[a.ID]
	if ref != nil {
		ref.set(a)
	}
	if a.ParentID != "" {
		s.syncParentSource(a.ParentID)
	}
	s.emit(func() {
		s.Changed.dispatch()
		if ref != nil {
			ref.Changed.dispatch()
		}
		s.cascade(a)
		s.ChildUpdated.dispatch(a)
	})
}

func (s *Store) remove(id string) {
	e, ok := s.records[id]
	if !ok {
		return
	}
	delete(s.records, id)
	s.seq[e.ord] = ""
	s.live.remove(e.ord)
	s.pending.remove(e.ord)
	ref := s.refs[id]
	if ref != nil {
		ref.set(nil)
	}
	s.emit(func() {
		s.Changed.dispatch()
		if ref != nil {
			ref.Changed.dispatch()
		}
		s.ChildDeleted.dispatch(id)
	})
}

func (s *Store) reset() {
	clear(s.records)
	s.seq = s.seq[:0]
	s.live.clear()
	s.pending.clear()
	for _, r := range s.refs {
		if s.loading {
			r.value, r.state = nil, StateLoading
		} else {
			r.set(nil)
		}
	}
}

// maybeCompact renumbers ordinals once most of seq is holes.
func (s *Store) maybeCompact() {
	if len(s.seq) < 64 || s.live.cardinality()*2 > len(s.seq) {
		return
	}
	seq := make([]string, 0, len(s.records))
	live, pending := newOrdinalSet(), newOrdinalSet()
	for ord := range s.live.ascending() {
		id := s.seq[ord]
		next := uint32(len(seq))
		if s.pending.contains(ord) {
			pending.add(next)
		}
		live.add(next)
		s.records[id] = entry{a: s.records[id].a, ord: next}
		seq = append(seq, id)
	}
	s.seq, s.live, s.pending = seq, live, pending
}

package testutil

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/property"
	"github.com/brainsharer/annostore/store"
)

// RNG wraps a seeded math/rand source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Vector returns rank coordinates in [minVal, maxVal).
func (r *RNG) Vector(rank int, minVal, maxVal float32) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := make([]float32, rank)
	span := maxVal - minVal
	for i := range v {
		v[i] = minVal + r.rand.Float32()*span
	}
	return v
}

// Color returns a random 24-bit RGB value.
func (r *RNG) Color() float64 {
	return float64(r.Intn(1 << 24))
}

// Point returns a point annotation without id.
func (r *RNG) Point(rank int) *annotation.Annotation {
	return &annotation.Annotation{Type: annotation.TypePoint, Point: r.Vector(rank, 0, 1000)}
}

// Line returns a line annotation without id.
func (r *RNG) Line(rank int) *annotation.Annotation {
	return &annotation.Annotation{
		Type:   annotation.TypeLine,
		PointA: r.Vector(rank, 0, 1000),
		PointB: r.Vector(rank, 0, 1000),
	}
}

// Box returns an axis-aligned bounding box annotation without id.
func (r *RNG) Box(rank int) *annotation.Annotation {
	a := r.Vector(rank, 0, 500)
	b := r.Vector(rank, 500, 1000)
	return &annotation.Annotation{Type: annotation.TypeAxisAlignedBoundingBox, PointA: a, PointB: b}
}

// Ellipsoid returns an ellipsoid annotation without id.
func (r *RNG) Ellipsoid(rank int) *annotation.Annotation {
	return &annotation.Annotation{
		Type:   annotation.TypeEllipsoid,
		Center: r.Vector(rank, 0, 1000),
		Radii:  r.Vector(rank, 1, 50),
	}
}

// COM returns a center-of-mass annotation without id.
func (r *RNG) COM(rank int) *annotation.Annotation {
	return &annotation.Annotation{Type: annotation.TypeCOM, Point: r.Vector(rank, 0, 1000)}
}

// Cell returns a cell annotation with a category drawn from categories.
func (r *RNG) Cell(rank int, categories ...string) *annotation.Annotation {
	a := &annotation.Annotation{Type: annotation.TypeCell, Point: r.Vector(rank, 0, 1000)}
	if len(categories) > 0 {
		a.Category = categories[r.Intn(len(categories))]
	}
	return a
}

// Leaf returns a random non-collection annotation.
func (r *RNG) Leaf(rank int) *annotation.Annotation {
	switch r.Intn(6) {
	case 0:
		return r.Point(rank)
	case 1:
		return r.Line(rank)
	case 2:
		return r.Box(rank)
	case 3:
		return r.Ellipsoid(rank)
	case 4:
		return r.COM(rank)
	default:
		return r.Cell(rank, "neuron", "glia")
	}
}

// Specs is the property layout used by NewStore.
var Specs = []property.Spec{
	{ID: store.ColorProperty, Type: property.TypeRGB, Default: 0xFFFF00},
	{ID: store.VisibilityProperty, Type: property.TypeFloat32, Default: 1},
}

// Schema returns a layer schema of the given rank using Specs.
func Schema(rank int) annotation.Schema {
	return annotation.Schema{Rank: rank, Properties: Specs}
}

// NewStore returns a store with Schema(rank) and sequential ids "a1", "a2", ...
func NewStore(t testing.TB, rank int, opts ...store.Option) *store.Store {
	t.Helper()
	n := 0
	gen := store.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("a%d", n)
	})
	s, err := store.New(Schema(rank), append([]store.Option{gen}, opts...)...)
	require.NoError(t, err)
	return s
}

// Populate adds n random leaf annotations and returns their references.
func Populate(t testing.TB, s *store.Store, rng *RNG, n int) []*store.Reference {
	t.Helper()
	refs := make([]*store.Reference, n)
	for i := range refs {
		var err error
		refs[i], err = s.Add(rng.Leaf(s.Rank()))
		require.NoError(t, err)
	}
	return refs
}

// PopulateVolume adds a volume holding polygons, each with lines children.
func PopulateVolume(t testing.TB, s *store.Store, rng *RNG, polygons, lines int) *store.Reference {
	t.Helper()
	rank := s.Rank()
	vol, err := s.Add(&annotation.Annotation{Type: annotation.TypeVolume, Source: rng.Vector(rank, 0, 1000)})
	require.NoError(t, err)

	for i := 0; i < polygons; i++ {
		src := rng.Vector(rank, 0, 1000)
		poly, err := s.Add(&annotation.Annotation{Type: annotation.TypePolygon, Source: src}, store.WithParent(vol))
		require.NoError(t, err)
		for j := 0; j < lines; j++ {
			a := rng.Vector(rank, 0, 1000)
			b := rng.Vector(rank, 0, 1000)
			if rank > 2 {
				a[2], b[2] = src[2], src[2]
			}
			_, err := s.Add(&annotation.Annotation{Type: annotation.TypeLine, PointA: a, PointB: b}, store.WithParent(poly))
			require.NoError(t, err)
		}
		poly.Dispose()
	}
	return vol
}

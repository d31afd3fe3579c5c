package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainsharer/annostore/annotation"
)

func TestVector(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.Vector(3, 10, 20)
	require.Len(t, v, 3)
	for _, x := range v {
		assert.GreaterOrEqual(t, x, float32(10))
		assert.Less(t, x, float32(20))
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Vector(4, 0, 1)
	rng.Reset()
	v2 := rng.Vector(4, 0, 1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestFactories(t *testing.T) {
	rng := NewRNG(1)
	tests := []struct {
		a    *annotation.Annotation
		want annotation.Type
	}{
		{rng.Point(3), annotation.TypePoint},
		{rng.Line(3), annotation.TypeLine},
		{rng.Box(3), annotation.TypeAxisAlignedBoundingBox},
		{rng.Ellipsoid(3), annotation.TypeEllipsoid},
		{rng.COM(3), annotation.TypeCOM},
		{rng.Cell(3, "neuron"), annotation.TypeCell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Type)
		assert.Empty(t, tt.a.ID)
	}
	assert.Equal(t, "neuron", tests[5].a.Category)

	box := rng.Box(2)
	for i := range box.PointA {
		assert.Less(t, box.PointA[i], box.PointB[i])
	}
}

func TestPopulate(t *testing.T) {
	rng := NewRNG(7)
	s := NewStore(t, 3)

	refs := Populate(t, s, rng, 20)
	assert.Len(t, refs, 20)
	assert.Equal(t, 20, s.Len())
	assert.Equal(t, "a1", refs[0].ID())
	for _, r := range refs {
		assert.False(t, annotation.IsCollection(r.Value()))
	}
}

func TestPopulateVolume(t *testing.T) {
	rng := NewRNG(7)
	s := NewStore(t, 3)

	vol := PopulateVolume(t, s, rng, 3, 4)
	defer vol.Dispose()

	assert.Equal(t, 1+3+3*4, s.Len())
	assert.Len(t, vol.Value().ChildIDs, 3)
	assert.Len(t, s.GetAllAnnsUnderRoot(vol.ID()), 1+3+3*4)
}

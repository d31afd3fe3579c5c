package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeNames(t *testing.T) {
	for _, typ := range Types {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
		assert.NotEmpty(t, typ.Description())
		assert.NotEmpty(t, typ.Icon())
	}
	assert.Equal(t, "axis_aligned_bounding_box", TypeAxisAlignedBoundingBox.String())
	assert.Equal(t, "com", TypeCOM.String())

	_, err := ParseType("sphere")
	assert.Error(t, err)
}

func TestGeometryBytes(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{TypePoint, 12},
		{TypeLine, 24},
		{TypeAxisAlignedBoundingBox, 24},
		{TypeEllipsoid, 24},
		{TypePolygon, 12},
		{TypeVolume, 12},
		{TypeCOM, 12},
		{TypeCell, 12},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, GeometryBytes(tt.typ, 3))
		})
	}
}

func TestSnapZ(t *testing.T) {
	t.Run("Rank3", func(t *testing.T) {
		orig := []float32{10, 20, 5.2}
		a := &Annotation{Type: TypePoint, Point: orig}
		SnapZ(a)
		assert.Equal(t, []float32{10, 20, 5.5}, a.Point)
		assert.Equal(t, float32(5.2), orig[2], "input vector must not be modified")
	})

	t.Run("Rank4", func(t *testing.T) {
		a := &Annotation{Type: TypeLine, PointA: []float32{1, 2, 3.9, 7.1}, PointB: []float32{0, 0, -0.2, 0}}
		SnapZ(a)
		assert.Equal(t, []float32{1, 2, 3.5, 7.5}, a.PointA)
		assert.Equal(t, []float32{0, 0, -0.5, 0.5}, a.PointB)
	})

	t.Run("Rank2", func(t *testing.T) {
		a := &Annotation{Type: TypePoint, Point: []float32{1.2, 3.7}}
		SnapZ(a)
		assert.Equal(t, []float32{1.2, 3.7}, a.Point)
	})

	t.Run("RadiiUntouched", func(t *testing.T) {
		a := &Annotation{Type: TypeEllipsoid, Center: []float32{0, 0, 1.1}, Radii: []float32{1, 1, 2.2}}
		SnapZ(a)
		assert.Equal(t, []float32{0, 0, 1.5}, a.Center)
		assert.Equal(t, []float32{1, 1, 2.2}, a.Radii)
	})
}

func TestVisitGeometry(t *testing.T) {
	a := &Annotation{Type: TypeEllipsoid, Center: []float32{1, 2, 3}, Radii: []float32{4, 5, 6}}
	var vecs [][]float32
	var dirs []bool
	VisitGeometry(a, func(vec []float32, isVector bool) {
		vecs = append(vecs, vec)
		dirs = append(dirs, isVector)
	})
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, vecs)
	assert.Equal(t, []bool{false, true}, dirs)

	MapGeometry(a, func(vec []float32, isVector bool) []float32 {
		if isVector {
			return vec
		}
		return []float32{vec[0] + 1, vec[1] + 1, vec[2] + 1}
	})
	assert.Equal(t, []float32{2, 3, 4}, a.Center)
	assert.Equal(t, []float32{4, 5, 6}, a.Radii)
}

func TestGeometryBinary(t *testing.T) {
	a := &Annotation{ID: "l1", Type: TypeLine, PointA: []float32{1, 2, 3}, PointB: []float32{-4, 5.5, 6}}
	buf := make([]byte, 4+GeometryBytes(TypeLine, 3))
	end := SerializeGeometry(buf, 4, 3, a)
	assert.Equal(t, len(buf), end)

	got := DeserializeGeometry(buf, 4, 3, TypeLine, "l1")
	assert.Equal(t, a.PointA, got.PointA)
	assert.Equal(t, a.PointB, got.PointB)
	assert.Equal(t, "l1", got.ID)

	// 1.0f little-endian
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, buf[4:8])
}

func TestCloneIsDeep(t *testing.T) {
	a := &Annotation{
		ID: "p", Type: TypePolygon, Source: []float32{1, 2, 3},
		ChildIDs: []string{"a"}, Properties: []float64{1},
		RelatedSegments: [][]uint64{{7}},
	}
	c := a.Clone()
	c.Source[0] = 9
	c.ChildIDs[0] = "b"
	c.Properties[0] = 2
	c.RelatedSegments[0][0] = 8
	assert.Equal(t, float32(1), a.Source[0])
	assert.Equal(t, "a", a.ChildIDs[0])
	assert.Equal(t, 1.0, a.Properties[0])
	assert.Equal(t, uint64(7), a.RelatedSegments[0][0])
	assert.Nil(t, (*Annotation)(nil).Clone())
}

func TestHelpers(t *testing.T) {
	poly := &Annotation{Type: TypePolygon}
	vol := &Annotation{Type: TypeVolume}
	line := &Annotation{Type: TypeLine, ParentID: "p", PointA: []float32{1, 1, 1}}

	assert.True(t, IsCollection(poly))
	assert.True(t, IsCollection(vol))
	assert.False(t, IsCollection(line))
	assert.True(t, HasDummyChildren(poly))
	assert.False(t, HasDummyChildren(vol))
	assert.True(t, IsDummy(line))
	assert.Equal(t, line.PointA, SortPoint(line))

	id := NewID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, NewID())

	box := NewDataBoundsBox([]float32{0, 0, 0}, []float32{10, 10, 10})
	assert.Equal(t, DataBoundsID, box.ID)
	assert.Equal(t, TypeAxisAlignedBoundingBox, box.Type)
}

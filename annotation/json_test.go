package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainsharer/annostore/property"
)

func testSchema() Schema {
	return Schema{
		Rank:          3,
		Relationships: []string{"segments"},
		Properties: []property.Spec{
			{ID: "color", Type: property.TypeRGB, Default: 0x00FFFF},
			{ID: "visibility", Type: property.TypeFloat32, Default: 1},
		},
	}
}

func TestMarshalJSON(t *testing.T) {
	schema := testSchema()
	a := &Annotation{
		ID:              "abc",
		Type:            TypePoint,
		Point:           []float32{1, 2, 3.5},
		Properties:      []float64{0x0000FF, 0.5},
		RelatedSegments: [][]uint64{{12, 34}},
	}
	data, err := MarshalJSON(a, schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"point": [1, 2, 3.5],
		"type": "point",
		"id": "abc",
		"segments": [["12", "34"]],
		"props": ["#ff0000", 0.5]
	}`, string(data))

	t.Run("EmptySegmentsOmitted", func(t *testing.T) {
		a := &Annotation{ID: "x", Type: TypePoint, Point: []float32{0, 0, 0}, RelatedSegments: [][]uint64{{}}}
		data, err := MarshalJSON(a, Schema{Rank: 3})
		require.NoError(t, err)
		assert.JSONEq(t, `{"point":[0,0,0],"type":"point","id":"x"}`, string(data))
	})

	t.Run("Collection", func(t *testing.T) {
		a := &Annotation{ID: "p", Type: TypePolygon, Source: []float32{0, 0, 0.5}, ParentID: "v"}
		data, err := MarshalJSON(a, Schema{Rank: 3})
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":[0,0,0.5],"childAnnotationIds":[],"childrenVisible":false,
			"type":"polygon","id":"p","parentAnnotationId":"v"}`, string(data))
	})
}

func TestRestore(t *testing.T) {
	schema := testSchema()

	t.Run("Defaults", func(t *testing.T) {
		a, err := Restore([]byte(`{"type":"cell","id":"c1","point":[1,2,3],"category":"neuron","description":"soma"}`), schema, false)
		require.NoError(t, err)
		assert.Equal(t, TypeCell, a.Type)
		assert.Equal(t, "neuron", a.Category)
		assert.Equal(t, "soma", a.Description)
		assert.Equal(t, []float64{0x00FFFF, 1}, a.Properties)
		assert.Equal(t, [][]uint64{{}}, a.RelatedSegments)
	})

	t.Run("BackfillProps", func(t *testing.T) {
		a, err := Restore([]byte(`{"type":"point","id":"p","point":[1,2,3],"props":["#00ff00"]}`), schema, false)
		require.NoError(t, err)
		assert.Equal(t, []float64{0x00FF00, 1}, a.Properties)
	})

	t.Run("FlatSegments", func(t *testing.T) {
		a, err := Restore([]byte(`{"type":"point","id":"p","point":[1,2,3],"segments":["5","6"]}`), schema, false)
		require.NoError(t, err)
		assert.Equal(t, [][]uint64{{5, 6}}, a.RelatedSegments)
	})

	t.Run("VolumeVisibleByDefault", func(t *testing.T) {
		a, err := Restore([]byte(`{"type":"volume","id":"v","source":[1,2,3]}`), schema, false)
		require.NoError(t, err)
		assert.True(t, a.ChildrenVisible)
		assert.Equal(t, []string{}, a.ChildIDs)

		a, err = Restore([]byte(`{"type":"polygon","id":"p","source":[1,2,3],"childAnnotationIds":["l1"]}`), schema, false)
		require.NoError(t, err)
		assert.False(t, a.ChildrenVisible)
		assert.Equal(t, []string{"l1"}, a.ChildIDs)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := Restore([]byte(`{"type":"point","point":[1,2,3]}`), schema, false)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "id", pe.Field)

		a, err := Restore([]byte(`{"type":"point","point":[1,2,3]}`), schema, true)
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
	})
}

func TestRestoreErrors(t *testing.T) {
	schema := testSchema()
	tests := []struct {
		name  string
		in    string
		field string
	}{
		{"UnknownType", `{"type":"sphere","id":"a"}`, "type"},
		{"WrongRank", `{"type":"point","id":"a","point":[1,2]}`, "point"},
		{"MissingGeometry", `{"type":"line","id":"a","pointA":[1,2,3]}`, "pointB"},
		{"NegativeRadii", `{"type":"ellipsoid","id":"a","center":[1,2,3],"radii":[1,-1,1]}`, "radii"},
		{"TooManyProps", `{"type":"point","id":"a","point":[1,2,3],"props":["#000000",1,2]}`, "props"},
		{"BadSegment", `{"type":"point","id":"a","point":[1,2,3],"segments":[["x"]]}`, "segments"},
		{"BadChildren", `{"type":"polygon","id":"a","source":[1,2,3],"childAnnotationIds":[1]}`, "childAnnotationIds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore([]byte(tt.in), schema, false)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	schema := testSchema()
	records := []*Annotation{
		{ID: "pt", Type: TypePoint, Point: []float32{1, 2, 3.5}, Properties: []float64{1, 0.25}, RelatedSegments: [][]uint64{{}}},
		{ID: "ln", Type: TypeLine, ParentID: "pg", PointA: []float32{1, 1, 1.5}, PointB: []float32{2, 2, 1.5}, Properties: []float64{2, 1}, RelatedSegments: [][]uint64{{9}}},
		{ID: "bx", Type: TypeAxisAlignedBoundingBox, Description: "box", PointA: []float32{0, 0, 0.5}, PointB: []float32{4, 4, 4.5}, Properties: []float64{3, 1}, RelatedSegments: [][]uint64{{}}},
		{ID: "el", Type: TypeEllipsoid, Center: []float32{1, 1, 1.5}, Radii: []float32{2, 3, 4}, Properties: []float64{4, 1}, RelatedSegments: [][]uint64{{}}},
		{ID: "pg", Type: TypePolygon, Source: []float32{1, 1, 1.5}, ChildIDs: []string{"ln"}, ChildrenVisible: true, Properties: []float64{5, 1}, RelatedSegments: [][]uint64{{}}},
		{ID: "vl", Type: TypeVolume, Source: []float32{1, 1, 1.5}, ChildIDs: []string{}, Properties: []float64{6, 0}, RelatedSegments: [][]uint64{{}}},
		{ID: "cm", Type: TypeCOM, Description: "SC", Point: []float32{7, 8, 9.5}, Properties: []float64{7, 1}, RelatedSegments: [][]uint64{{}}},
		{ID: "cl", Type: TypeCell, Category: "positive", Point: []float32{7, 8, 9.5}, Properties: []float64{8, 1}, RelatedSegments: [][]uint64{{1, 2}}},
	}
	for _, r := range records {
		t.Run(r.Type.String(), func(t *testing.T) {
			data, err := MarshalJSON(r, schema)
			require.NoError(t, err)
			got, err := Restore(data, schema, false)
			require.NoError(t, err)
			assert.Equal(t, r, got)
		})
	}
}

func TestRestoreArray(t *testing.T) {
	out, err := RestoreArray([]byte(`[{"type":"point","id":"a","point":[1,2,3]},{"type":"com","id":"b","point":[4,5,6]}]`), testSchema())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[1].ID)

	_, err = RestoreArray([]byte(`[{"type":"point","id":"a"}]`), testSchema())
	assert.Error(t, err)
}

package annostore_test

import (
	"context"
	"fmt"
	"log"

	"github.com/brainsharer/annostore"
	"github.com/brainsharer/annostore/annotation"
	"github.com/brainsharer/annostore/blobstore"
	"github.com/brainsharer/annostore/property"
)

var schema = annotation.Schema{
	Rank: 3,
	Properties: []property.Spec{
		{ID: "color", Type: property.TypeRGB, Default: 0xFFFF00},
		{ID: "visibility", Type: property.TypeFloat32, Default: 1},
	},
}

// Example_saveLoad builds a polygon, snapshots it and reopens the layer.
func Example_saveLoad() {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	db, err := annostore.Open(ctx, schema, annostore.WithBlobStore(bs))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	poly, _ := db.Add(ctx, &annotation.Annotation{
		ID:     "outline",
		Type:   annotation.TypePolygon,
		Source: []float32{0, 0, 10},
	})
	for i := 0; i < 3; i++ {
		_, _ = db.AddChild(ctx, poly, &annotation.Annotation{
			Type:   annotation.TypeLine,
			PointA: []float32{float32(i), 0, 10},
			PointB: []float32{float32(i + 1), 0, 10},
		})
	}
	if _, err := db.Save(ctx); err != nil {
		log.Fatal(err)
	}

	reopened, err := annostore.Open(ctx, schema, annostore.WithBlobStore(bs))
	if err != nil {
		log.Fatal(err)
	}
	defer reopened.Close()

	a, _ := reopened.Get("outline")
	fmt.Println(a.Type, len(a.ChildIDs), a.Source)
	// Output: polygon 3 [0 0 10.5]
}

// Example_metrics collects operation counters.
func Example_metrics() {
	ctx := context.Background()
	metrics := &annostore.BasicMetricsCollector{}

	db, err := annostore.Open(ctx, schema, annostore.WithMetricsCollector(metrics))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	id, _ := db.Add(ctx, &annotation.Annotation{Type: annotation.TypePoint, Point: []float32{1, 2, 3}})
	_ = db.Update(ctx, id, &annotation.Annotation{Type: annotation.TypePoint, Point: []float32{4, 5, 6}})
	_ = db.Delete(ctx, id, false)

	stats := metrics.GetStats()
	fmt.Println(stats.AddCount, stats.UpdateCount, stats.DeleteCount)
	// Output: 1 1 1
}

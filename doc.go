// Package annostore provides a hierarchical store for spatial annotations:
// points, lines, boxes, ellipsoids, polygons, volumes, centers of mass and
// labeled cells, organized in collections and carrying typed properties.
//
// The store package holds the data model and mutation engine. This package
// wraps it in a goroutine-safe DB that adds snapshot persistence to any
// blobstore.Store, mirroring through Redis, structured logging and metrics.
//
// # Quick Start
//
//	schema := annotation.Schema{
//	    Rank: 3,
//	    Properties: []property.Spec{
//	        {ID: "color", Type: property.TypeRGB, Default: 0xFFFF00},
//	        {ID: "visibility", Type: property.TypeFloat32, Default: 1},
//	    },
//	}
//
//	ctx := context.Background()
//	db, err := annostore.Open(ctx, schema, annostore.WithBlobStore(blobstore.NewLocalStore("./layer")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	polygon, _ := db.Add(ctx, &annotation.Annotation{
//	    Type:   annotation.TypePolygon,
//	    Source: []float32{0, 0, 10},
//	})
//	db.AddChild(ctx, polygon, &annotation.Annotation{
//	    Type:   annotation.TypeLine,
//	    PointA: []float32{0, 0, 10},
//	    PointB: []float32{5, 0, 10},
//	})
//	db.Save(ctx)
//
// # Queries
//
// Select filters records with an expression from package query:
//
//	neurons, _ := db.Select(`kind == "cell" && category == "neuron"`)
//
// # Mirroring
//
// With WithMirror or WithMirrorURL, Push publishes the committed records to
// a Redis key, Pull adopts them, and Sync does both continuously:
//
//	db, _ := annostore.Open(ctx, schema, annostore.WithMirrorURL("redis://localhost:6379/0", "layer:42"))
//	go db.Sync(ctx)
//
// # Storage
//
// Snapshots go through blobstore.Store: blobstore.NewMemoryStore,
// blobstore.NewLocalStore, the minio subpackage for S3-compatible servers
// and the s3 subpackage for AWS, optionally behind s3.DDBCommitStore when
// several writers share a prefix.
package annostore

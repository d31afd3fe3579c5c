// Package snapshot persists the committed content of an annotation store.
//
// A snapshot file is a 16-byte header, the manifest codec's name, the
// codec-encoded Manifest and the store's JSON state split into compressed
// blocks (none, LZ4 or zstd). The header carries a CRC32 of the body and the
// manifest a CRC32 of the uncompressed state.
//
// Save writes snapshots/<seq>.snap to a blobstore.Store and then points
// CURRENT at it; Load follows CURRENT. With s3.DDBCommitStore the CURRENT
// update is a conditional write, so concurrent writers cannot lose commits.
//
//	name, m, err := snapshot.Save(ctx, bs, s, snapshot.WithCompression(snapshot.CompressionLZ4))
//	_, err = snapshot.Load(ctx, bs, other)
package snapshot

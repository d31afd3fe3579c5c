// Package testutil provides deterministic annotation factories for tests.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	s := testutil.NewStore(t, 3)
//	refs := testutil.Populate(t, s, rng, 100)
//	vol := testutil.PopulateVolume(t, s, rng, 4, 10)
package testutil

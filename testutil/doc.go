// Package testutil provides testing utilities for rowsink.
//
// This package is intended for use in tests and benchmarks only.
// It generates deterministic Arrow record batches and reads written
// files back into row counts.
//
// # Random Batches
//
//	rng := testutil.NewRNG(seed)
//	rec := rng.Batch(128) // id, name, score columns
//	defer rec.Release()
//
// # Sequential Batches
//
//	rec := testutil.Sequence(0, 100) // ids 0..99
package testutil

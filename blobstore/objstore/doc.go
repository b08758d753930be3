// Package objstore provides a blobstore.Store on any thanos objstore.Bucket:
// GCS, Azure, Swift, COS, OSS, the filesystem provider and the in-memory
// bucket used in tests.
//
// # Basic Usage
//
//	bkt := objstore.NewInMemBucket()
//	store := objstoreblob.NewStore(bkt, objstoreblob.WithPrefix("datasets"))
//	res, err := rowsink.Write(ctx, batches, rowsink.WithStore(store))
//
// Buckets upload whole objects, so blobs are buffered in memory and uploaded
// on Close. Directories are key prefixes.
package objstore

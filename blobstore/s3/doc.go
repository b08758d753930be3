// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("datasets/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	res, err := rowsink.Write(ctx, batches, rowsink.WithStore(store))
//
// # Features
//
//   - Streaming multipart uploads, files never have to fit in memory
//   - Paginated recursive listing
//   - Batched DeleteObjects for clearing destinations
//   - Configurable prefix for multi-tenant isolation
//
// # Commits
//
// DDBCommitter publishes write manifests with DynamoDB conditional puts so
// that concurrent writers to one dataset never lose a commit.
//
// Directories are key prefixes. MkdirAll is a no-op and an empty directory
// cannot be told apart from a missing one.
package s3

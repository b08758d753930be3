// Package blobstore provides the storage backends the dataset writer creates
// files, directories and listings on.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem (through internal/fs, so tests can inject faults)
//   - MemoryStore: process memory, used by tests and in-process pipelines
//   - s3.Store: Amazon S3 with streaming multipart uploads
//   - minio.Store: MinIO and other S3 compatible services
//
// # Custom Implementations
//
// Implement the Store interface to support other backends:
//
//	type Store interface {
//	    Create(ctx, name) (WritableBlob, error)
//	    Open(ctx, name) (Blob, error)
//	    MkdirAll(ctx, dir) error
//	    DeleteDirContents(ctx, dir, missingOK) error
//	    List(ctx, dir) ([]FileInfo, error)
//	}
//
// Object stores have no real directories: MkdirAll is a no-op and a directory
// exists as long as a key with its prefix does.
package blobstore

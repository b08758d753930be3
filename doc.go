// Package rowsink writes streams of Arrow record batches into partitioned
// datasets of files.
//
// rowsink is built on a hierarchical, cost-aware task scheduler. Every file
// of a write is a serialized queue of open, write and close tasks; global
// throttles bound the rows held in memory and the number of open files, and
// the first failure anywhere cancels the whole write.
//
// # Quick Start
//
//	res, err := rowsink.Write(ctx, batches,
//	    rowsink.WithStore(blobstore.NewLocalStore("/data")),
//	    rowsink.WithFormat(format.Parquet()),
//	    rowsink.WithBaseDir("events"),
//	    rowsink.WithMaxRowsPerFile(1_000_000),
//	)
//
// Cloud storage:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("datasets/"))
//	res, err := rowsink.Write(ctx, batches, rowsink.WithStore(store))
//
// # Partitioning
//
// A Partitioner splits every batch into parts routed to directories below
// the base directory:
//
//	rowsink.WithPartitioner(rowsink.HivePartitioner("year", "month"))
//	rowsink.WithPartitioner(rowsink.HashPartitioner("user_id", 16))
//
// # Backpressure
//
// Write pulls the next batch only after the previous one was accepted.
// Acceptance waits while MaxRowsQueued rows are not yet written or while
// MaxOpenFiles files are open; the writer then closes the largest open file
// to make room.
//
// # Commits
//
// With WithCommitter every successful write publishes a manifest listing its
// files. manifest.Store keeps manifests next to the data; the DynamoDB
// committer in blobstore/s3 supports concurrent writers.
//
// # Lower level API
//
// Package dataset exposes the writer on an explicit scheduler tree, package
// scheduler the task scheduler itself.
package rowsink

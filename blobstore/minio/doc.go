// Package minio provides a blobstore.Store on MinIO and other S3 compatible
// services through the MinIO client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "datasets/")
//	res, err := rowsink.Write(ctx, batches, rowsink.WithStore(store))
//
// # Features
//
//   - Streaming uploads of unknown size
//   - Recursive listing and batched removal
//   - Works with Ceph, Garage, SeaweedFS and other S3 compatible storage
//
// Like package s3, directories are key prefixes.
package minio

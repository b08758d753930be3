package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/thanos-io/objstore/providers/filesystem"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/rowsink"
	"github.com/hupe1980/rowsink/blobstore"
	minioblob "github.com/hupe1980/rowsink/blobstore/minio"
	objstoreblob "github.com/hupe1980/rowsink/blobstore/objstore"
	"github.com/hupe1980/rowsink/blobstore/s3"
	"github.com/hupe1980/rowsink/dataset"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/manifest"
)

// Job describes a write in a YAML file. Flags override individual fields.
type Job struct {
	Input    InputConfig    `yaml:"input"`
	Store    StoreConfig    `yaml:"store"`
	Format   FormatConfig   `yaml:"format"`
	Output   OutputConfig   `yaml:"output"`
	Limits   LimitsConfig   `yaml:"limits"`
	Manifest ManifestConfig `yaml:"manifest"`
}

// InputConfig selects the CSV inputs.
type InputConfig struct {
	// Pattern is a doublestar glob, e.g. "data/**/*.csv.gz".
	Pattern   string `yaml:"pattern"`
	Delimiter string `yaml:"delimiter"`
	ChunkRows int    `yaml:"chunk_rows"`
}

// StoreConfig selects the destination store.
type StoreConfig struct {
	// Kind is one of local, s3, minio or filesystem (thanos objstore provider).
	Kind      string `yaml:"kind"`
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

type FormatConfig struct {
	Name        string `yaml:"name"`
	Compression string `yaml:"compression"`
}

type OutputConfig struct {
	BaseDir          string   `yaml:"base_dir"`
	BasenameTemplate string   `yaml:"basename_template"`
	ExistingData     string   `yaml:"existing_data"`
	MaxOpenFiles     int      `yaml:"max_open_files"`
	MaxRowsPerFile   int64    `yaml:"max_rows_per_file"`
	MinRowsPerGroup  int64    `yaml:"min_rows_per_group"`
	MaxRowsPerGroup  int64    `yaml:"max_rows_per_group"`
	PartitionBy      []string `yaml:"partition_by"`
	HashBy           string   `yaml:"hash_by"`
	HashBuckets      int      `yaml:"hash_buckets"`
}

type LimitsConfig struct {
	Workers          int     `yaml:"workers"`
	MaxRowsQueued    int64   `yaml:"max_rows_queued"`
	MaxRowsPerSecond float64 `yaml:"max_rows_per_second"`
}

// ManifestConfig enables a manifest commit after a successful write. With
// DynamoDBTable set the DynamoDB commit log is used.
type ManifestConfig struct {
	Dir           string `yaml:"dir"`
	DynamoDBTable string `yaml:"dynamodb_table"`
}

func defaultJob() Job {
	return Job{
		Input:  InputConfig{Delimiter: ",", ChunkRows: 8192},
		Store:  StoreConfig{Kind: "local", Root: "."},
		Format: FormatConfig{Name: "parquet"},
		Output: OutputConfig{ExistingData: "error"},
	}
}

// loadJob reads a job file on top of the defaults. Unknown keys are errors.
func loadJob(path string) (Job, error) {
	job := defaultJob()
	if path == "" {
		return job, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return job, fmt.Errorf("read job: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil && !errors.Is(err, io.EOF) {
		return job, fmt.Errorf("parse job %s: %w", path, err)
	}

	return job, nil
}

func (c StoreConfig) open(ctx context.Context) (blobstore.Store, error) {
	switch c.Kind {
	case "", "local":
		return blobstore.NewLocalStore(c.Root), nil
	case "s3":
		return s3.New(ctx, c.Bucket, s3.WithPrefix(c.Prefix), s3.WithRegion(c.Region), s3.WithEndpoint(c.Endpoint))
	case "minio":
		client, err := minio.New(c.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
			Secure: c.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minioblob.NewStore(client, c.Bucket, c.Prefix), nil
	case "filesystem":
		bkt, err := filesystem.NewBucket(c.Root)
		if err != nil {
			return nil, fmt.Errorf("filesystem bucket: %w", err)
		}
		return objstoreblob.NewStore(bkt, objstoreblob.WithPrefix(c.Prefix)), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", c.Kind)
	}
}

// baseURI identifies the dataset in the DynamoDB commit log.
func (c StoreConfig) baseURI(baseDir string) string {
	switch c.Kind {
	case "s3", "minio":
		return fmt.Sprintf("s3://%s/%s", c.Bucket, joinKey(c.Prefix, baseDir))
	default:
		return "file://" + joinKey(c.Root, c.Prefix, baseDir)
	}
}

func joinKey(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

func (c FormatConfig) format() (format.Format, error) {
	var opts []format.Option
	if c.Compression != "" {
		comp, err := format.ParseCompression(c.Compression)
		if err != nil {
			return nil, err
		}
		opts = append(opts, format.WithCompression(comp))
	}
	return format.ByName(c.Name, opts...)
}

func (c OutputConfig) partitioner() (rowsink.Partitioner, error) {
	switch {
	case len(c.PartitionBy) > 0 && c.HashBy != "":
		return nil, errors.New("partition_by and hash_by are exclusive")
	case len(c.PartitionBy) > 0:
		return rowsink.HivePartitioner(c.PartitionBy...), nil
	case c.HashBy != "":
		if c.HashBuckets <= 0 {
			return nil, errors.New("hash_buckets must be a positive number")
		}
		return rowsink.HashPartitioner(c.HashBy, c.HashBuckets), nil
	default:
		return rowsink.NoPartitioning(), nil
	}
}

// options translates the job into write options for store.
func (j Job) options(ctx context.Context, store blobstore.Store) ([]rowsink.Option, error) {
	f, err := j.Format.format()
	if err != nil {
		return nil, err
	}

	behavior, err := dataset.ParseExistingDataBehavior(j.Output.ExistingData)
	if err != nil {
		return nil, err
	}

	partitioner, err := j.Output.partitioner()
	if err != nil {
		return nil, err
	}

	opts := []rowsink.Option{
		rowsink.WithStore(store),
		rowsink.WithFormat(f),
		rowsink.WithBaseDir(j.Output.BaseDir),
		rowsink.WithExistingDataBehavior(behavior),
		rowsink.WithPartitioner(partitioner),
	}

	if j.Output.BasenameTemplate != "" {
		opts = append(opts, rowsink.WithBasenameTemplate(j.Output.BasenameTemplate))
	}
	if j.Output.MaxOpenFiles > 0 {
		opts = append(opts, rowsink.WithMaxOpenFiles(j.Output.MaxOpenFiles))
	}
	if j.Output.MaxRowsPerFile > 0 {
		opts = append(opts, rowsink.WithMaxRowsPerFile(j.Output.MaxRowsPerFile))
	}
	if j.Output.MaxRowsPerGroup > 0 {
		opts = append(opts, rowsink.WithRowsPerGroup(j.Output.MinRowsPerGroup, j.Output.MaxRowsPerGroup))
	}
	if j.Limits.Workers > 0 {
		opts = append(opts, rowsink.WithWorkers(j.Limits.Workers))
	}
	if j.Limits.MaxRowsQueued > 0 {
		opts = append(opts, rowsink.WithMaxRowsQueued(j.Limits.MaxRowsQueued))
	}
	if j.Limits.MaxRowsPerSecond > 0 {
		opts = append(opts, rowsink.WithMaxRowsPerSecond(j.Limits.MaxRowsPerSecond))
	}

	committer, err := j.committer(ctx, store)
	if err != nil {
		return nil, err
	}
	if committer != nil {
		opts = append(opts, rowsink.WithCommitter(committer))
	}

	return opts, nil
}

func (j Job) committer(ctx context.Context, store blobstore.Store) (manifest.Committer, error) {
	dir := j.Manifest.Dir
	if dir == "" && j.Manifest.DynamoDBTable == "" {
		return nil, nil
	}
	if dir == "" {
		dir = "_manifests"
	}
	dir = joinKey(j.Output.BaseDir, dir)

	if j.Manifest.DynamoDBTable == "" {
		return manifest.NewStore(store, dir), nil
	}

	client, err := s3.NewDDBClient(ctx, s3.WithRegion(j.Store.Region), s3.WithEndpoint(j.Store.Endpoint))
	if err != nil {
		return nil, err
	}
	return s3.NewDDBCommitter(store, client, j.Manifest.DynamoDBTable, j.Store.baseURI(j.Output.BaseDir), dir), nil
}

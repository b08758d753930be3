package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/codec"
	"github.com/hupe1980/rowsink/manifest"
)

// DDBCommitter commits manifests with DynamoDB as the commit log.
//
// Manifest content lives in the blob store; DynamoDB holds one item per
// version and a conditional put provides the compare-and-swap S3 lacks, so
// several writers can commit to the same dataset safely.
//
// Table schema:
//   - Partition key: base_uri (string), the dataset location
//   - Sort key: version (number), monotonically increasing
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name rowsink-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitter struct {
	store   blobstore.Store
	client  DDBClient
	table   string
	baseURI string
	dir     string
	codec   codec.Codec
}

var _ manifest.Committer = (*DDBCommitter)(nil)

// DDBClient is the subset of the DynamoDB API used by DDBCommitter.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// NewDDBCommitter creates a committer writing manifest blobs below dir of
// store. baseURI, typically "s3://bucket/prefix", is the partition key.
func NewDDBCommitter(store blobstore.Store, client DDBClient, table, baseURI, dir string) *DDBCommitter {
	return &DDBCommitter{
		store:   store,
		client:  client,
		table:   table,
		baseURI: baseURI,
		dir:     dir,
		codec:   codec.Default,
	}
}

// NewDDBClient creates a DynamoDB client from the default AWS configuration
// chain. WithRegion and WithEndpoint apply.
func NewDDBClient(ctx context.Context, opts ...Option) (*dynamodb.Client, error) {
	o := applyOptions(opts)

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(do *dynamodb.Options) {
		if o.endpoint != "" {
			do.BaseEndpoint = aws.String(o.endpoint)
		}
	}), nil
}

// Load returns the manifest of the latest committed version.
func (c *DDBCommitter) Load(ctx context.Context) (*manifest.Manifest, error) {
	version, name, err := c.latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return &manifest.Manifest{Version: manifest.CurrentVersion}, nil
	}

	m, err := manifest.Get(ctx, c.store, name, c.codec)
	if err != nil {
		return nil, err
	}
	m.ID = version
	return m, nil
}

// Commit writes m under a unique name and claims the next version for it.
// It fails with manifest.ErrConcurrentModification if another writer
// claimed that version first; the written blob is then left unreferenced.
func (c *DDBCommitter) Commit(ctx context.Context, m *manifest.Manifest) error {
	version, _, err := c.latest(ctx)
	if err != nil {
		return err
	}

	m.Version = manifest.CurrentVersion
	m.ID = version + 1

	name := path.Join(c.dir, fmt.Sprintf("%s-%06d-%s.json", manifest.FilePrefix, m.ID, uuid.NewString()))
	if err := manifest.Put(ctx, c.store, name, c.codec, m); err != nil {
		return err
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: c.baseURI},
			"version":       &types.AttributeValueMemberN{Value: strconv.FormatUint(m.ID, 10)},
			"manifest_path": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: version %d", manifest.ErrConcurrentModification, m.ID)
		}
		return fmt.Errorf("s3: commit version %d: %w", m.ID, err)
	}

	return nil
}

// latest queries the highest committed version of the dataset.
func (c *DDBCommitter) latest(ctx context.Context) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commits: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: invalid version attribute")
	}
	pathAttr, ok := item["manifest_path"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: invalid manifest_path attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: parse version: %w", err)
	}

	return version, pathAttr.Value, nil
}

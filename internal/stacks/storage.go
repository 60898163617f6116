package stacks

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/constructs"
	"github.com/thoughtful-python/infra/internal/models"
)

// StorageArgs configures the storage stack.
type StorageArgs struct {
	Catalog *catalog.Catalog
	Tags    pulumi.StringMap
}

// Storage holds the platform's tables and buckets.
type Storage struct {
	pulumi.ResourceState

	Tables  map[models.TableID]*constructs.StandardTable
	Buckets map[models.BucketID]*constructs.StandardBucket
}

// NewStorage declares every catalog table and bucket.
func NewStorage(ctx *pulumi.Context, name string, args *StorageArgs, opts ...pulumi.ResourceOption) (*Storage, error) {
	s := &Storage{
		Tables:  make(map[models.TableID]*constructs.StandardTable),
		Buckets: make(map[models.BucketID]*constructs.StandardBucket),
	}
	if err := ctx.RegisterComponentResource("thoughtful:stacks:Storage", name, s, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(s)

	outputs := pulumi.Map{}
	for _, spec := range args.Catalog.Buckets {
		bucket, err := constructs.NewStandardBucket(ctx, string(spec.ID)+"Bucket", &constructs.StandardBucketArgs{
			Spec: spec,
			Tags: args.Tags,
		}, parent)
		if err != nil {
			return nil, err
		}
		s.Buckets[spec.ID] = bucket
		outputs[string(spec.ID)+"BucketName"] = bucket.Name
	}

	for _, spec := range args.Catalog.Tables {
		table, err := constructs.NewStandardTable(ctx, string(spec.ID)+"Table", &constructs.StandardTableArgs{
			Spec: spec,
			Tags: args.Tags,
		}, parent)
		if err != nil {
			return nil, err
		}
		s.Tables[spec.ID] = table
		outputs[string(spec.ID)+"TableName"] = table.Name
	}

	if err := ctx.RegisterResourceOutputs(s, outputs); err != nil {
		return nil, err
	}
	return s, nil
}

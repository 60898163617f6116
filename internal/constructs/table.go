package constructs

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/dynamodb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/internal/policy"
)

// StandardTableArgs configures a StandardTable.
type StandardTableArgs struct {
	Spec                models.TableSpec
	PointInTimeRecovery bool
	Tags                pulumi.StringMap
}

// StandardTable is an encrypted DynamoDB table billed on demand unless Spec.BillingMode says otherwise.
type StandardTable struct {
	pulumi.ResourceState

	Spec  models.TableSpec
	Table *dynamodb.Table
	Name  pulumi.StringOutput
	Arn   pulumi.StringOutput
}

// NewStandardTable declares the table described by args.Spec.
func NewStandardTable(ctx *pulumi.Context, name string, args *StandardTableArgs, opts ...pulumi.ResourceOption) (*StandardTable, error) {
	if err := args.Spec.Validate(); err != nil {
		return nil, err
	}

	t := &StandardTable{Spec: args.Spec}
	if err := ctx.RegisterComponentResource("thoughtful:constructs:StandardTable", name, t, opts...); err != nil {
		return nil, err
	}

	tableArgs := tableArgs(args.Spec)
	tableArgs.Tags = args.Tags
	if args.PointInTimeRecovery {
		tableArgs.PointInTimeRecovery = &dynamodb.TablePointInTimeRecoveryArgs{
			Enabled: pulumi.Bool(true),
		}
	}

	resourceOpts := []pulumi.ResourceOption{pulumi.Parent(t)}
	if args.Spec.Removal != models.RemovalDestroy {
		resourceOpts = append(resourceOpts, pulumi.RetainOnDelete(true))
	}

	table, err := dynamodb.NewTable(ctx, name, tableArgs, resourceOpts...)
	if err != nil {
		return nil, registerErr("table", name, err)
	}
	t.Table = table
	t.Name = table.Name
	t.Arn = table.Arn

	if err := ctx.RegisterResourceOutputs(t, pulumi.Map{
		"tableName": t.Name,
		"tableArn":  t.Arn,
	}); err != nil {
		return nil, err
	}
	return t, nil
}

func tableArgs(spec models.TableSpec) *dynamodb.TableArgs {
	billing := spec.BillingMode
	if billing == "" {
		billing = models.BillingPayPerRequest
	}

	args := &dynamodb.TableArgs{
		Name:        pulumi.String(spec.Name),
		BillingMode: pulumi.String(string(billing)),
		HashKey:     pulumi.String(spec.PartitionKey.Name),
		ServerSideEncryption: &dynamodb.TableServerSideEncryptionArgs{
			Enabled: pulumi.Bool(true),
		},
	}
	if spec.SortKey != nil {
		args.RangeKey = pulumi.String(spec.SortKey.Name)
	}

	var attrs dynamodb.TableAttributeArray
	for _, a := range spec.Attributes() {
		attrs = append(attrs, &dynamodb.TableAttributeArgs{
			Name: pulumi.String(a.Name),
			Type: pulumi.String(string(a.Type)),
		})
	}
	args.Attributes = attrs

	if len(spec.Indexes) > 0 {
		var indexes dynamodb.TableGlobalSecondaryIndexArray
		for _, idx := range spec.Indexes {
			gsi := &dynamodb.TableGlobalSecondaryIndexArgs{
				Name:           pulumi.String(idx.Name),
				HashKey:        pulumi.String(idx.PartitionKey.Name),
				ProjectionType: pulumi.String("ALL"),
			}
			if idx.SortKey != nil {
				gsi.RangeKey = pulumi.String(idx.SortKey.Name)
			}
			indexes = append(indexes, gsi)
		}
		args.GlobalSecondaryIndexes = indexes
	}

	if spec.TTLAttribute != "" {
		args.Ttl = &dynamodb.TableTtlArgs{
			AttributeName: pulumi.String(spec.TTLAttribute),
			Enabled:       pulumi.Bool(true),
		}
	}
	return args
}

// Grant gives grantee the DynamoDB actions of access on the table and its indexes.
func (t *StandardTable) Grant(ctx *pulumi.Context, grantee Grantee, access models.Access) error {
	actions, err := policy.TableActions(access)
	if err != nil {
		return fmt.Errorf("table %s: %w", t.Spec.ID, err)
	}
	resources := t.Arn.ApplyT(func(arn string) []string {
		return policy.TableResources(arn)
	}).(pulumi.StringArrayOutput)
	return grantee.AddToRolePolicy(ctx, statementID(access.String(), "table", string(t.Spec.ID)), actions, resources)
}

package constructs

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/internal/policy"
)

// StandardBucketArgs configures a StandardBucket.
type StandardBucketArgs struct {
	Spec models.BucketSpec
	Tags pulumi.StringMap
}

// StandardBucket is an S3 bucket that is encrypted, owner enforced and TLS only.
// Public access stays blocked unless Spec.PublicRead is set.
type StandardBucket struct {
	pulumi.ResourceState

	Spec   models.BucketSpec
	Bucket *s3.BucketV2
	Name   pulumi.StringOutput
	Arn    pulumi.StringOutput
}

// NewStandardBucket declares the bucket and its configuration resources.
func NewStandardBucket(ctx *pulumi.Context, name string, args *StandardBucketArgs, opts ...pulumi.ResourceOption) (*StandardBucket, error) {
	b := &StandardBucket{Spec: args.Spec}
	if err := ctx.RegisterComponentResource("thoughtful:constructs:StandardBucket", name, b, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(b)

	resourceOpts := []pulumi.ResourceOption{parent}
	if args.Spec.Removal != models.RemovalDestroy {
		resourceOpts = append(resourceOpts, pulumi.RetainOnDelete(true))
	}

	bucket, err := s3.NewBucketV2(ctx, name, &s3.BucketV2Args{
		Bucket:       pulumi.String(args.Spec.Name),
		ForceDestroy: pulumi.Bool(args.Spec.Removal == models.RemovalDestroy),
		Tags:         args.Tags,
	}, resourceOpts...)
	if err != nil {
		return nil, registerErr("bucket", name, err)
	}
	b.Bucket = bucket
	b.Name = bucket.Bucket
	b.Arn = bucket.Arn

	_, err = s3.NewBucketServerSideEncryptionConfigurationV2(ctx, name+"-encryption", &s3.BucketServerSideEncryptionConfigurationV2Args{
		Bucket: bucket.ID(),
		Rules: s3.BucketServerSideEncryptionConfigurationV2RuleArray{
			&s3.BucketServerSideEncryptionConfigurationV2RuleArgs{
				ApplyServerSideEncryptionByDefault: &s3.BucketServerSideEncryptionConfigurationV2RuleApplyServerSideEncryptionByDefaultArgs{
					SseAlgorithm: pulumi.String("AES256"),
				},
			},
		},
	}, parent)
	if err != nil {
		return nil, registerErr("bucket encryption", name, err)
	}

	_, err = s3.NewBucketOwnershipControls(ctx, name+"-ownership", &s3.BucketOwnershipControlsArgs{
		Bucket: bucket.ID(),
		Rule: &s3.BucketOwnershipControlsRuleArgs{
			ObjectOwnership: pulumi.String("BucketOwnerEnforced"),
		},
	}, parent)
	if err != nil {
		return nil, registerErr("bucket ownership controls", name, err)
	}

	// ACLs stay blocked either way; public read is granted by policy only
	pab, err := s3.NewBucketPublicAccessBlock(ctx, name+"-pab", &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(!args.Spec.PublicRead),
		RestrictPublicBuckets: pulumi.Bool(!args.Spec.PublicRead),
	}, parent)
	if err != nil {
		return nil, registerErr("bucket public access block", name, err)
	}

	publicRead := args.Spec.PublicRead
	_, err = s3.NewBucketPolicy(ctx, name+"-policy", &s3.BucketPolicyArgs{
		Bucket: bucket.ID(),
		Policy: bucket.Arn.ApplyT(func(arn string) (string, error) {
			return bucketPolicy(arn, publicRead)
		}).(pulumi.StringOutput),
	}, parent, pulumi.DependsOn([]pulumi.Resource{pab}))
	if err != nil {
		return nil, registerErr("bucket policy", name, err)
	}

	if args.Spec.Versioned {
		_, err = s3.NewBucketVersioningV2(ctx, name+"-versioning", &s3.BucketVersioningV2Args{
			Bucket: bucket.ID(),
			VersioningConfiguration: &s3.BucketVersioningV2VersioningConfigurationArgs{
				Status: pulumi.String("Enabled"),
			},
		}, parent)
		if err != nil {
			return nil, registerErr("bucket versioning", name, err)
		}
	}

	if err := ctx.RegisterResourceOutputs(b, pulumi.Map{
		"bucketName": b.Name,
		"bucketArn":  b.Arn,
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// Grant gives grantee the S3 actions of access on the bucket and its objects.
func (b *StandardBucket) Grant(ctx *pulumi.Context, grantee Grantee, access models.Access) error {
	actions, err := policy.BucketActions(access)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", b.Spec.ID, err)
	}
	resources := b.Arn.ApplyT(func(arn string) []string {
		return policy.BucketResources(arn)
	}).(pulumi.StringArrayOutput)
	return grantee.AddToRolePolicy(ctx, statementID(access.String(), "bucket", string(b.Spec.ID)), actions, resources)
}

func bucketPolicy(bucketArn string, publicRead bool) (string, error) {
	statements := []policy.Statement{{
		Sid:       "DenyInsecureTransport",
		Effect:    "Deny",
		Principal: "*",
		Action:    []string{"s3:*"},
		Resource:  policy.BucketResources(bucketArn),
		Condition: policy.Json{
			"Bool": policy.Json{"aws:SecureTransport": "false"},
		},
	}}
	if publicRead {
		statements = append(statements, policy.Statement{
			Sid:       "PublicRead",
			Effect:    "Allow",
			Principal: "*",
			Action:    []string{"s3:GetObject"},
			Resource:  []string{bucketArn + "/*"},
		})
	}
	return policy.NewDocument(statements...).JSON()
}

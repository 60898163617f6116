package stacks

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/constructs"
	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/pkg/config"
)

// ComputeStackName prefixes every function name.
const ComputeStackName = "ComputeStack"

// ComputeArgs configures the compute stack.
type ComputeArgs struct {
	Config       *config.Config
	Catalog      *catalog.Catalog
	Foundational *Foundational
	Storage      *Storage
	Tags         pulumi.StringMap
}

// Compute holds one function per catalog entry.
type Compute struct {
	pulumi.ResourceState

	Functions map[models.FunctionID]*constructs.DockerFunction
	// Order lists the function ids in catalog order.
	Order []models.FunctionID
}

// NewCompute declares the functions, injecting the names and ARNs their
// bindings ask for and granting exactly the declared access.
func NewCompute(ctx *pulumi.Context, name string, args *ComputeArgs, opts ...pulumi.ResourceOption) (*Compute, error) {
	c := &Compute{Functions: make(map[models.FunctionID]*constructs.DockerFunction)}
	if err := ctx.RegisterComponentResource("thoughtful:stacks:Compute", name, c, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(c)
	stackName := args.Config.Qualify(ComputeStackName)

	outputs := pulumi.Map{}
	for _, spec := range args.Catalog.Functions {
		env, err := bindEnvironment(spec, args.Foundational, args.Storage)
		if err != nil {
			return nil, err
		}

		fn, err := constructs.NewDockerFunction(ctx, string(spec.ID)+"Function", &constructs.DockerFunctionArgs{
			Spec:             spec,
			StackName:        stackName,
			Region:           args.Config.Region,
			RepositoryURL:    args.Foundational.RepositoryURL,
			RepositoryArn:    args.Foundational.RepositoryArn,
			ImageTag:         args.Config.ImageTag,
			Environment:      env,
			LogRetentionDays: args.Config.LogRetentionDays,
			Tags:             args.Tags,
		}, parent)
		if err != nil {
			return nil, err
		}

		if err := grantBindings(ctx, fn, spec, args.Foundational, args.Storage); err != nil {
			return nil, err
		}

		c.Functions[spec.ID] = fn
		c.Order = append(c.Order, spec.ID)
		outputs[string(spec.ID)+"FunctionArn"] = fn.Arn
	}

	if err := ctx.RegisterResourceOutputs(c, outputs); err != nil {
		return nil, err
	}
	return c, nil
}

// Has reports whether the compute stack declared the function.
func (c *Compute) Has(id models.FunctionID) bool {
	_, ok := c.Functions[id]
	return ok
}

func bindEnvironment(spec models.FunctionSpec, f *Foundational, s *Storage) (pulumi.StringMap, error) {
	env := pulumi.StringMap{}
	for _, b := range spec.Tables {
		table, ok := s.Tables[b.Table]
		if !ok {
			return nil, fmt.Errorf("function %s: table %s: %w", spec.ID, b.Table, catalog.ErrUnknownTarget)
		}
		env[b.EnvVar] = table.Name
	}
	for _, b := range spec.Buckets {
		bucket, ok := s.Buckets[b.Bucket]
		if !ok {
			return nil, fmt.Errorf("function %s: bucket %s: %w", spec.ID, b.Bucket, catalog.ErrUnknownTarget)
		}
		env[b.EnvVar] = bucket.Name
	}
	for _, b := range spec.Secrets {
		secret, ok := f.Secrets[b.Secret]
		if !ok {
			return nil, fmt.Errorf("function %s: secret %s: %w", spec.ID, b.Secret, catalog.ErrUnknownTarget)
		}
		env[b.EnvVar] = secret.Arn
	}
	return env, nil
}

func grantBindings(ctx *pulumi.Context, fn *constructs.DockerFunction, spec models.FunctionSpec, f *Foundational, s *Storage) error {
	for _, b := range spec.Tables {
		if err := s.Tables[b.Table].Grant(ctx, fn, b.Access); err != nil {
			return err
		}
	}
	for _, b := range spec.Buckets {
		if err := s.Buckets[b.Bucket].Grant(ctx, fn, b.Access); err != nil {
			return err
		}
	}
	for _, b := range spec.Secrets {
		if err := f.Secrets[b.Secret].GrantRead(ctx, fn); err != nil {
			return err
		}
	}
	return nil
}

// Package stacks composes the constructs into the platform's stacks: foundational
// resources, storage, compute, API routing and overview.
package stacks

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/constructs"
	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/pkg/config"
)

// keepImages is how many images the repository lifecycle policy keeps.
const keepImages = 2

// FoundationalArgs configures the foundational resources stack.
type FoundationalArgs struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Tags    pulumi.StringMap
}

// Foundational holds the image repository and the platform secrets.
type Foundational struct {
	pulumi.ResourceState

	Repository    *ecr.Repository
	RepositoryURL pulumi.StringOutput
	RepositoryArn pulumi.StringOutput
	Secrets       map[models.SecretID]*constructs.ManagedSecret
}

// NewFoundational declares the repository and secrets.
func NewFoundational(ctx *pulumi.Context, name string, args *FoundationalArgs, opts ...pulumi.ResourceOption) (*Foundational, error) {
	f := &Foundational{Secrets: make(map[models.SecretID]*constructs.ManagedSecret)}
	if err := ctx.RegisterComponentResource("thoughtful:stacks:FoundationalResources", name, f, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(f)

	repo, err := ecr.NewRepository(ctx, "SampleAppDockerRepository", &ecr.RepositoryArgs{
		Name: pulumi.String(catalog.RepositoryName(args.Config)),
		ImageScanningConfiguration: &ecr.RepositoryImageScanningConfigurationArgs{
			ScanOnPush: pulumi.Bool(true),
		},
		Tags: args.Tags,
	}, parent, pulumi.RetainOnDelete(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create image repository: %w", err)
	}
	f.Repository = repo
	f.RepositoryURL = repo.RepositoryUrl
	f.RepositoryArn = repo.Arn

	lifecycle, err := lifecyclePolicy(keepImages)
	if err != nil {
		return nil, err
	}
	_, err = ecr.NewLifecyclePolicy(ctx, "SampleAppDockerRepository-lifecycle", &ecr.LifecyclePolicyArgs{
		Repository: repo.Name,
		Policy:     pulumi.String(lifecycle),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository lifecycle policy: %w", err)
	}

	for _, spec := range args.Catalog.Secrets {
		secret, err := constructs.NewManagedSecret(ctx, string(spec.ID), &constructs.ManagedSecretArgs{
			Spec: spec,
			Tags: args.Tags,
		}, parent)
		if err != nil {
			return nil, err
		}
		f.Secrets[spec.ID] = secret
	}

	if err := ctx.RegisterResourceOutputs(f, pulumi.Map{
		"repositoryUrl": f.RepositoryURL,
	}); err != nil {
		return nil, err
	}
	return f, nil
}

type lifecycleRule struct {
	RulePriority int                `json:"rulePriority"`
	Description  string             `json:"description"`
	Selection    lifecycleSelection `json:"selection"`
	Action       map[string]string  `json:"action"`
}

type lifecycleSelection struct {
	TagStatus   string `json:"tagStatus"`
	CountType   string `json:"countType"`
	CountNumber int    `json:"countNumber"`
}

func lifecyclePolicy(keep int) (string, error) {
	return marshal(map[string][]lifecycleRule{
		"rules": {{
			RulePriority: 1,
			Description:  fmt.Sprintf("Keep only the last %d images", keep),
			Selection: lifecycleSelection{
				TagStatus:   "any",
				CountType:   "imageCountMoreThan",
				CountNumber: keep,
			},
			Action: map[string]string{"type": "expire"},
		}},
	})
}

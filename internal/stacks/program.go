package stacks

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/pkg/config"
)

// Platform is every stack of one deployment.
type Platform struct {
	Foundational *Foundational
	Storage      *Storage
	Compute      *Compute
	Api          *Api
	Overview     *Overview
}

// Program returns the Pulumi program. Configuration is read from the stack
// config and the environment before any resource is declared.
func Program(logger *slog.Logger) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		cfg, err := config.Load(stackConfig{
			project: pulumiconfig.New(ctx, ""),
			aws:     pulumiconfig.New(ctx, "aws"),
		})
		if err != nil {
			return err
		}
		_, err = Deploy(ctx, cfg, logger)
		return err
	}
}

// stackConfig reads provider keys such as aws:region from their own namespace
// and everything else from the project's.
type stackConfig struct {
	project *pulumiconfig.Config
	aws     *pulumiconfig.Config
}

func (s stackConfig) Get(key string) string {
	if name, ok := strings.CutPrefix(key, "aws:"); ok {
		return s.aws.Get(name)
	}
	return s.project.Get(key)
}

// Deploy declares the stacks in dependency order and exports their outputs.
func Deploy(ctx *pulumi.Context, cfg *config.Config, logger *slog.Logger) (*Platform, error) {
	cat := catalog.New(cfg)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	logger.Info("declaring platform",
		slog.String("stage", cfg.Stage.String()),
		slog.String("account", cfg.Account),
		slog.String("region", cfg.Region),
		slog.String("image_tag", cfg.ImageTag),
		slog.String("authorizer_mode", string(cfg.AuthorizerMode)),
	)
	logger.Debug("stage flags",
		slog.Bool("enable_test_auth", cfg.EnableTestAuth),
		slog.Bool("enable_demo_permissions", cfg.EnableDemoPermissions),
		slog.Any("allowed_origins", cfg.AllowedOrigins),
		slog.Int("log_retention_days", cfg.LogRetentionDays),
	)

	tags := pulumi.ToStringMap(cfg.Tags())
	p := &Platform{}
	var err error

	p.Foundational, err = NewFoundational(ctx, "FoundationalResourcesStack", &FoundationalArgs{
		Config:  cfg,
		Catalog: cat,
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}

	p.Storage, err = NewStorage(ctx, "StorageStack", &StorageArgs{
		Catalog: cat,
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}

	p.Compute, err = NewCompute(ctx, ComputeStackName, &ComputeArgs{
		Config:       cfg,
		Catalog:      cat,
		Foundational: p.Foundational,
		Storage:      p.Storage,
		Tags:         tags,
	})
	if err != nil {
		return nil, err
	}
	for _, id := range p.Compute.Order {
		logger.Debug("function granted",
			slog.String("function", string(id)),
			slog.Any("policies", p.Compute.Functions[id].Grants()),
		)
	}

	p.Api, err = NewApi(ctx, "ApiGatewayStack", &ApiArgs{
		Config:  cfg,
		Catalog: cat,
		Compute: p.Compute,
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}

	p.Overview, err = NewOverview(ctx, "OverviewStack", &OverviewArgs{
		Config:  cfg,
		Compute: p.Compute,
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}

	p.export(ctx)
	logger.Info("platform declared",
		slog.Int("tables", len(p.Storage.Tables)),
		slog.Int("functions", len(p.Compute.Functions)),
		slog.Int("routes", len(p.Api.Routes)),
	)
	return p, nil
}

func (p *Platform) export(ctx *pulumi.Context) {
	ctx.Export("dockerRepositoryUri", p.Foundational.RepositoryURL)
	for id, secret := range p.Foundational.Secrets {
		ctx.Export(string(id)+"SecretArn", secret.Arn)
	}

	for id, bucket := range p.Storage.Buckets {
		ctx.Export(string(id)+"BucketName", bucket.Name)
	}
	for id, table := range p.Storage.Tables {
		ctx.Export(string(id)+"TableName", table.Name)
	}

	for id, fn := range p.Compute.Functions {
		ctx.Export(string(id)+"FunctionArn", fn.Arn)
	}

	ctx.Export("apiEndpoint", p.Api.Endpoint)
	ctx.Export("dashboardName", p.Overview.Dashboard.DashboardName)
}

func marshal(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return string(out), nil
}

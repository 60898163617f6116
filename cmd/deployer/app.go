package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/spf13/cobra"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/internal/schemacheck"
	"github.com/thoughtful-python/infra/internal/secrets"
	"github.com/thoughtful-python/infra/pkg/config"
)

// stackRunner is the part of an Automation API stack the commands drive.
type stackRunner interface {
	Preview(ctx context.Context, opts ...optpreview.Option) (auto.PreviewResult, error)
	Up(ctx context.Context, opts ...optup.Option) (auto.UpResult, error)
	Destroy(ctx context.Context, opts ...optdestroy.Option) (auto.DestroyResult, error)
	Outputs(ctx context.Context) (auto.OutputMap, error)
}

// stackSettings selects a stack and the config the program reads.
type stackSettings struct {
	Name    string
	WorkDir string
	Stage   models.Stage
	// ImageTag is left empty to keep the stack's own imageTag config.
	ImageTag string
}

type options struct {
	stack    string
	stage    string
	imageTag string
	workDir  string
}

// app holds the command dependencies. Tests replace the factories.
type app struct {
	opts   options
	logger *slog.Logger
	out    io.Writer

	openStack     func(ctx context.Context, s stackSettings) (stackRunner, error)
	dynamoClient  func(ctx context.Context, region string) (schemacheck.Client, error)
	secretManager func(ctx context.Context, region string) (*secrets.Manager, error)
}

func newApp(logger *slog.Logger, out io.Writer) *app {
	a := &app{logger: logger, out: out, openStack: openLocalStack}
	a.dynamoClient = func(ctx context.Context, region string) (schemacheck.Client, error) {
		cfg, err := loadAWSConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		return dynamodb.NewFromConfig(cfg), nil
	}
	a.secretManager = func(ctx context.Context, region string) (*secrets.Manager, error) {
		cfg, err := loadAWSConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		return secrets.NewManager(cfg, a.logger), nil
	}
	return a
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deployer",
		Short: "Deploy and operate the thoughtful-python backend",
		Long: `deployer runs the Pulumi program in this repository through the Automation API.

The stage defaults to the stack name when it names a stage (dev, stage, prod)
and to STAGE or dev otherwise. In CI an image tag is required:

    deployer up --stack prod --image-tag "$GITHUB_SHA"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.opts.stack, "stack", "s", "dev", "Pulumi stack name")
	flags.StringVar(&a.opts.stage, "stage", "", "Deployment stage (dev, stage, prod)")
	flags.StringVar(&a.opts.imageTag, "image-tag", "", "Container image tag for every function (defaults to IMAGE_TAG)")
	flags.StringVar(&a.opts.workDir, "work-dir", ".", "Directory holding Pulumi.yaml")

	rootCmd.AddCommand(
		newPreviewCmd(a),
		newUpCmd(a),
		newDestroyCmd(a),
		newOutputsCmd(a),
		newCheckSchemaCmd(a),
		newSecretCmd(a),
	)
	return rootCmd
}

type flagConfig map[string]string

func (f flagConfig) Get(key string) string { return f[key] }

// stackFile reads Pulumi.<stack>.yaml from the work dir.
func (a *app) stackFile() (config.StackFile, error) {
	return config.LoadStackFile(filepath.Join(a.opts.workDir, "Pulumi."+a.opts.stack+".yaml"))
}

// target resolves the stage, account and region.
func (a *app) target() (config.Target, error) {
	file, err := a.stackFile()
	if err != nil {
		return config.Target{}, err
	}
	return a.targetFrom(file)
}

// targetFrom resolves the target the way the program will see it. The stage
// flag wins over the stack file, which wins over a stack named after a stage.
func (a *app) targetFrom(file config.StackFile) (config.Target, error) {
	stage := a.opts.stage
	if stage == "" {
		stage = file.Get("stage")
	}
	if stage == "" && models.Stage(a.opts.stack).IsValid() {
		stage = a.opts.stack
	}
	return config.LoadTarget(flagConfig{
		"stage":             stage,
		"account":           file.Get("account"),
		"region":            file.Get("region"),
		config.AWSRegionKey: file.Get(config.AWSRegionKey),
	})
}

// catalogConfig is enough configuration to name the catalog's resources.
func catalogConfig(t config.Target) *config.Config {
	return &config.Config{Stage: t.Stage, Account: t.Account, Region: t.Region}
}

// resolvedTarget is the image tag and target of an engine command.
type resolvedTarget struct {
	// imageTag is empty when neither the flag nor IMAGE_TAG named one.
	imageTag string
	target   config.Target
}

// imageTag is the tag named by the flag or IMAGE_TAG.
func (a *app) imageTag() string {
	if a.opts.imageTag != "" {
		return a.opts.imageTag
	}
	return os.Getenv("IMAGE_TAG")
}

// resolve checks the image tag rule before anything touches the engine.
func (a *app) resolve() (resolvedTarget, error) {
	file, err := a.stackFile()
	if err != nil {
		return resolvedTarget{}, err
	}

	tag := a.imageTag()
	resolved, err := config.ResolveImageTag(firstNonEmpty(tag, file.Get("imageTag")))
	if err != nil {
		return resolvedTarget{}, err
	}

	target, err := a.targetFrom(file)
	if err != nil {
		return resolvedTarget{}, err
	}

	a.logger.Info("resolved deployment target",
		slog.String("stack", a.opts.stack),
		slog.String("stage", target.Stage.String()),
		slog.String("region", target.Region),
		slog.String("image_tag", resolved),
	)
	return resolvedTarget{imageTag: tag, target: target}, nil
}

func (a *app) open(ctx context.Context, r resolvedTarget) (stackRunner, error) {
	return a.openStack(ctx, stackSettings{
		Name:     a.opts.stack,
		WorkDir:  a.opts.workDir,
		Stage:    r.target.Stage,
		ImageTag: r.imageTag,
	})
}

// stack resolves the target and opens the stack.
func (a *app) stack(ctx context.Context) (stackRunner, error) {
	r, err := a.resolve()
	if err != nil {
		return nil, err
	}
	return a.open(ctx, r)
}

// existingStack opens the stack for commands that never run the program,
// so no image tag is required.
func (a *app) existingStack(ctx context.Context) (stackRunner, error) {
	target, err := a.target()
	if err != nil {
		return nil, err
	}
	return a.open(ctx, resolvedTarget{imageTag: a.imageTag(), target: target})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func openLocalStack(ctx context.Context, s stackSettings) (stackRunner, error) {
	stack, err := auto.UpsertStackLocalSource(ctx, s.Name, s.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to select stack %s: %w", s.Name, err)
	}

	settings := auto.ConfigMap{
		"stage": auto.ConfigValue{Value: s.Stage.String()},
	}
	if s.ImageTag != "" {
		settings["imageTag"] = auto.ConfigValue{Value: s.ImageTag}
	}
	if err := stack.SetAllConfig(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to set stack config: %w", err)
	}
	return &stack, nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

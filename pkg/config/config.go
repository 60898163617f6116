package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/thoughtful-python/infra/internal/models"
)

// ProjectName prefixes shared resource names such as secrets.
const ProjectName = "thoughtful-python"

const (
	defaultAccount = "598791268315"
	defaultRegion  = "us-east-2"
)

// AuthorizerMode selects how protected routes are authorized
type AuthorizerMode string

const (
	// AuthorizerLambda uses the custom authorizer function and the platform's own tokens.
	AuthorizerLambda AuthorizerMode = "lambda"
	// AuthorizerJWT validates Google ID tokens directly in API Gateway.
	AuthorizerJWT AuthorizerMode = "jwt"
)

// IsValid checks if the authorizer mode is valid
func (m AuthorizerMode) IsValid() bool {
	return m == AuthorizerLambda || m == AuthorizerJWT
}

// AWSRegionKey is the provider's region setting. Getters resolve keys with a
// namespace as given and every other key in the project namespace.
const AWSRegionKey = "aws:region"

// Getter reads a stack configuration value. Pulumi's *config.Config satisfies it.
type Getter interface {
	Get(key string) string
}

// Config holds everything the stacks need to declare their resources
type Config struct {
	// Stage is the deployment environment (dev, stage, prod)
	Stage models.Stage

	// Deployment target
	Account string
	Region  string

	// ImageTag is the container image tag every function runs
	ImageTag string

	// Stage flags passed to the functions
	EnableTestAuth        bool
	EnableDemoPermissions bool

	// API configuration
	AllowedOrigins []string
	GoogleClientID string
	AuthorizerMode AuthorizerMode

	// LogRetentionDays applies to every function log group
	LogRetentionDays int
}

// Target is the subset of the configuration that identifies where to deploy.
type Target struct {
	Stage   models.Stage
	Account string
	Region  string
}

// LoadTarget reads the stage, account and region.
func LoadTarget(stack Getter) (Target, error) {
	stage, err := models.ParseStage(firstNonEmpty(get(stack, "stage"), os.Getenv("STAGE"), string(models.StageDev)))
	if err != nil {
		return Target{}, err
	}

	return Target{
		Stage:   stage,
		Account: firstNonEmpty(get(stack, "account"), os.Getenv("DEPLOY_ACCOUNT"), os.Getenv("CDK_DEFAULT_ACCOUNT"), defaultAccount),
		Region:  firstNonEmpty(get(stack, AWSRegionKey), get(stack, "region"), os.Getenv("DEPLOY_REGION"), os.Getenv("CDK_DEFAULT_REGION"), os.Getenv("AWS_REGION"), defaultRegion),
	}, nil
}

// Load reads configuration from the stack config, then environment variables,
// then the stage defaults in stages.yaml. stack may be nil.
func Load(stack Getter) (*Config, error) {
	target, err := LoadTarget(stack)
	if err != nil {
		return nil, err
	}

	imageTag, err := ResolveImageTag(firstNonEmpty(get(stack, "imageTag"), os.Getenv("IMAGE_TAG")))
	if err != nil {
		return nil, err
	}

	stages, err := LoadStages()
	if err != nil {
		return nil, err
	}
	defaults := stages.For(target.Stage)

	enableTestAuth, err := boolSetting(stack, "enableTestAuth", "ENABLE_TEST_AUTH", defaults.EnableTestAuth)
	if err != nil {
		return nil, err
	}
	enableDemoPermissions, err := boolSetting(stack, "enableDemoPermissions", "ENABLE_DEMO_PERMISSIONS", defaults.EnableDemoPermissions)
	if err != nil {
		return nil, err
	}

	logRetentionDays := 0
	if defaults.LogRetentionDays != nil {
		logRetentionDays = *defaults.LogRetentionDays
	}
	if raw := firstNonEmpty(get(stack, "logRetentionDays"), os.Getenv("LOG_RETENTION_DAYS")); raw != "" {
		logRetentionDays, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid logRetentionDays %q: %w", raw, err)
		}
	}

	origins := defaults.AllowedOrigins
	if raw := firstNonEmpty(get(stack, "allowedOrigins"), os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		origins = splitList(raw)
	}

	cfg := &Config{
		Stage:                 target.Stage,
		Account:               target.Account,
		Region:                target.Region,
		ImageTag:              imageTag,
		EnableTestAuth:        enableTestAuth,
		EnableDemoPermissions: enableDemoPermissions,
		AllowedOrigins:        origins,
		GoogleClientID:        firstNonEmpty(get(stack, "googleClientId"), os.Getenv("GOOGLE_CLIENT_ID"), deref(defaults.GoogleClientID)),
		AuthorizerMode:        AuthorizerMode(firstNonEmpty(get(stack, "authorizerMode"), os.Getenv("AUTHORIZER_MODE"), deref(defaults.AuthorizerMode), string(AuthorizerLambda))),
		LogRetentionDays:      logRetentionDays,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if !c.Stage.IsValid() {
		return fmt.Errorf("invalid stage: %s", c.Stage)
	}

	if c.Account == "" {
		return fmt.Errorf("deployment account is required")
	}

	if c.Region == "" {
		return fmt.Errorf("deployment region is required")
	}

	if c.ImageTag == "" {
		return fmt.Errorf("image tag is required")
	}

	if !c.AuthorizerMode.IsValid() {
		return fmt.Errorf("invalid authorizer mode: %s (must be lambda or jwt)", c.AuthorizerMode)
	}

	if c.AuthorizerMode == AuthorizerJWT && c.GoogleClientID == "" {
		return fmt.Errorf("googleClientId is required when authorizerMode is jwt")
	}

	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin is required")
	}

	if c.LogRetentionDays <= 0 {
		return fmt.Errorf("logRetentionDays must be positive, got %d", c.LogRetentionDays)
	}

	return nil
}

// Qualify returns name unchanged in production and suffixed with the stage elsewhere,
// so that several stages can share one account.
func (c *Config) Qualify(name string) string {
	return Target{Stage: c.Stage}.Qualify(name)
}

// SecretName builds the Secrets Manager name of a project secret.
func (c *Config) SecretName(name string) string {
	return Target{Stage: c.Stage}.SecretName(name)
}

// IsProduction returns true if the stage is production
func (t Target) IsProduction() bool {
	return t.Stage == models.StageProd
}

// Qualify returns name unchanged in production and suffixed with the stage elsewhere.
func (t Target) Qualify(name string) string {
	if t.IsProduction() {
		return name
	}
	return fmt.Sprintf("%s-%s", name, t.Stage)
}

// SecretName builds the Secrets Manager name of a project secret:
// /thoughtful-python/<name> in production, /thoughtful-python/<stage>/<name> elsewhere.
func (t Target) SecretName(name string) string {
	if t.IsProduction() {
		return fmt.Sprintf("/%s/%s", ProjectName, name)
	}
	return fmt.Sprintf("/%s/%s/%s", ProjectName, t.Stage, name)
}

// Tags returns the tags applied to every taggable resource.
func (c *Config) Tags() map[string]string {
	return map[string]string{
		"Project":     ProjectName,
		"Stage":       c.Stage.String(),
		"ManagedBy":   "pulumi",
		"Environment": c.Stage.String(),
	}
}

func boolSetting(stack Getter, key, envVar string, fallback *bool) (bool, error) {
	raw := firstNonEmpty(get(stack, key), os.Getenv(envVar))
	if raw == "" {
		return fallback != nil && *fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", envVar, raw, err)
	}
	return v, nil
}

func get(stack Getter, key string) string {
	if stack == nil {
		return ""
	}
	return strings.TrimSpace(stack.Get(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

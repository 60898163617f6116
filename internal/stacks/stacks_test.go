package stacks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/constructs"
	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/internal/policy"
	"github.com/thoughtful-python/infra/internal/pulumimock"
	"github.com/thoughtful-python/infra/pkg/config"
)

const (
	functionType    = "aws:lambda/function:Function"
	rolePolicyType  = "aws:iam/rolePolicy:RolePolicy"
	routeType       = "aws:apigatewayv2/route:Route"
	integrationType = "aws:apigatewayv2/integration:Integration"
	authorizerType  = "aws:apigatewayv2/authorizer:Authorizer"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(stage models.Stage) *config.Config {
	return &config.Config{
		Stage:                 stage,
		Account:               pulumimock.Account,
		Region:                pulumimock.Region,
		ImageTag:              "sha-abc123",
		EnableTestAuth:        false,
		EnableDemoPermissions: true,
		AllowedOrigins:        []string{"https://eric-rizzi.github.io", "http://localhost:5173"},
		GoogleClientID:        "client.apps.googleusercontent.com",
		AuthorizerMode:        config.AuthorizerLambda,
		LogRetentionDays:      14,
	}
}

func deploy(t *testing.T, cfg *config.Config) *pulumimock.Mocks {
	t.Helper()
	mocks := pulumimock.New()
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := Deploy(ctx, cfg, discard)
		return err
	}, mocks.Options(cfg.Stage.String()))
	require.NoError(t, err)
	return mocks
}

func TestDeploySynthesizesEveryResource(t *testing.T) {
	mocks := deploy(t, testConfig(models.StageProd))

	counts := map[string]int{
		"aws:ecr/repository:Repository":                  1,
		"aws:ecr/lifecyclePolicy:LifecyclePolicy":        1,
		"aws:secretsmanager/secret:Secret":               2,
		"aws:secretsmanager/secretVersion:SecretVersion": 1,
		"aws:dynamodb/table:Table":                       7,
		"aws:s3/bucketV2:BucketV2":                       1,
		functionType:                                     7,
		"aws:iam/role:Role":                              7,
		"aws:cloudwatch/logGroup:LogGroup":               8,
		"aws:apigatewayv2/api:Api":                       1,
		"aws:apigatewayv2/stage:Stage":                   1,
		authorizerType:                                   1,
		integrationType:                                  13,
		routeType:                                        15,
		"aws:lambda/permission:Permission":               14,
		"aws:cloudwatch/dashboard:Dashboard":             1,
		"aws:cloudwatch/metricAlarm:MetricAlarm":         7,
		"thoughtful:stacks:FoundationalResources":        1,
		"thoughtful:stacks:Storage":                      1,
		"thoughtful:stacks:Compute":                      1,
		"thoughtful:stacks:Api":                          1,
		"thoughtful:stacks:Overview":                     1,
	}
	for typeToken, want := range counts {
		assert.Len(t, mocks.OfType(typeToken), want, typeToken)
	}

	repo, ok := mocks.Get("aws:ecr/repository:Repository", "SampleAppDockerRepository")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("sample_app_src_rep-%s-%s", pulumimock.Account, pulumimock.Region), repo.Input("name"))
	assert.True(t, repo.Object("imageScanningConfiguration").Inputs["scanOnPush"].BoolValue())

	lifecycle, ok := mocks.Get("aws:ecr/lifecyclePolicy:LifecyclePolicy", "SampleAppDockerRepository-lifecycle")
	require.True(t, ok)
	assert.JSONEq(t, `{"rules":[{"rulePriority":1,"description":"Keep only the last 2 images","selection":{"tagStatus":"any","countType":"imageCountMoreThan","countNumber":2},"action":{"type":"expire"}}]}`, lifecycle.Input("policy"))

	bucket := mocks.OfType("aws:s3/bucketV2:BucketV2")[0]
	assert.Equal(t, fmt.Sprintf("%s-%s-transformation-output-bucket", pulumimock.Account, pulumimock.Region), bucket.Input("bucket"))

	var tableNames []string
	for _, table := range mocks.OfType("aws:dynamodb/table:Table") {
		tableNames = append(tableNames, table.Input("name"))
	}
	assert.ElementsMatch(t, []string{
		"TransformationCounterTable", "UserProgressTable", "LearningEntriesTable", "ThrottlingTable",
		"UserPermissionsTable", "RefreshTokenTable", "UserProfilesTable",
	}, tableNames)
}

func TestRoutesTargetDeclaredFunctions(t *testing.T) {
	mocks := deploy(t, testConfig(models.StageDev))

	functionArns := make(map[string]bool)
	for _, fn := range mocks.OfType(functionType) {
		functionArns[fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", pulumimock.Region, pulumimock.Account, fn.Input("name"))] = true
	}

	integrations := make(map[string]string)
	for _, in := range mocks.OfType(integrationType) {
		integrations["integrations/"+in.Name+"-id"] = in.Input("integrationUri")
	}

	var keys []string
	for _, route := range mocks.OfType(routeType) {
		uri, ok := integrations[route.Input("target")]
		require.True(t, ok, "route %s has no integration", route.Input("routeKey"))
		assert.True(t, functionArns[uri], "route %s targets unknown function %s", route.Input("routeKey"), uri)
		keys = append(keys, route.Input("routeKey"))
	}

	var want []string
	for _, r := range catalog.Routes() {
		want = append(want, r.RouteKeys()...)
	}
	assert.ElementsMatch(t, want, keys)
}

func TestProtectedRoutesUseAuthorizer(t *testing.T) {
	mocks := deploy(t, testConfig(models.StageDev))

	authorizer, ok := mocks.Get(authorizerType, "LambdaAuthorizer")
	require.True(t, ok)
	assert.Equal(t, "REQUEST", authorizer.Input("authorizerType"))
	assert.Equal(t, "2.0", authorizer.Input("authorizerPayloadFormatVersion"))
	assert.Equal(t, []string{"$request.header.Authorization"}, authorizer.Strings("identitySources"))
	assert.False(t, authorizer.Inputs["enableSimpleResponses"].BoolValue())
	assert.Contains(t, authorizer.Input("authorizerUri"), "ComputeStack-dev-Authorizer")

	protected := make(map[string]bool)
	for _, r := range catalog.Routes() {
		for _, key := range r.RouteKeys() {
			protected[key] = r.Protected
		}
	}
	for _, route := range mocks.OfType(routeType) {
		key := route.Input("routeKey")
		if protected[key] {
			assert.Equal(t, "CUSTOM", route.Input("authorizationType"), key)
			assert.Equal(t, "LambdaAuthorizer-id", route.Input("authorizerId"), key)
		} else {
			assert.Equal(t, "NONE", route.Input("authorizationType"), key)
			assert.Empty(t, route.Input("authorizerId"), key)
		}
	}

	permission, ok := mocks.Get("aws:lambda/permission:Permission", "LambdaAuthorizer-invoke")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(permission.Input("sourceArn"), "/authorizers/*"))
}

func TestJWTAuthorizerMode(t *testing.T) {
	cfg := testConfig(models.StageProd)
	cfg.AuthorizerMode = config.AuthorizerJWT
	mocks := deploy(t, cfg)

	authorizers := mocks.OfType(authorizerType)
	require.Len(t, authorizers, 1)
	jwt := authorizers[0]
	assert.Equal(t, "JWT", jwt.Input("authorizerType"))
	assert.Equal(t, GoogleIssuer, jwt.Object("jwtConfiguration").Input("issuer"))
	assert.Equal(t, []string{cfg.GoogleClientID}, jwt.Object("jwtConfiguration").Strings("audiences"))

	for _, route := range mocks.OfType(routeType) {
		if route.Input("authorizationType") != "NONE" {
			assert.Equal(t, "JWT", route.Input("authorizationType"))
		}
	}
	_, ok := mocks.Get("aws:lambda/permission:Permission", "LambdaAuthorizer-invoke")
	assert.False(t, ok)
}

func TestApiCorsAndStage(t *testing.T) {
	cfg := testConfig(models.StageProd)
	mocks := deploy(t, cfg)

	api, ok := mocks.Get("aws:apigatewayv2/api:Api", apiName)
	require.True(t, ok)
	assert.Equal(t, "HTTP", api.Input("protocolType"))
	cors := api.Object("corsConfiguration")
	assert.Equal(t, cfg.AllowedOrigins, cors.Strings("allowOrigins"))
	assert.Equal(t, []string{"GET", "OPTIONS", "POST", "PUT"}, cors.Strings("allowMethods"))
	assert.Equal(t, []string{"Content-Type", "Authorization"}, cors.Strings("allowHeaders"))
	assert.Equal(t, float64(864000), cors.Inputs["maxAge"].NumberValue())

	stage := mocks.OfType("aws:apigatewayv2/stage:Stage")[0]
	assert.Equal(t, "$default", stage.Input("name"))
	assert.True(t, stage.Inputs["autoDeploy"].BoolValue())
	assert.True(t, json.Valid([]byte(stage.Object("accessLogSettings").Input("format"))))
}

type statement struct {
	Actions   []string
	Resources []string
}

func expectedStatements(t *testing.T, cfg *config.Config, spec models.FunctionSpec) []statement {
	t.Helper()
	cat := catalog.New(cfg)

	want := []statement{
		{Actions: policy.ECRPullActions(), Resources: []string{fmt.Sprintf("arn:aws:ecr:%s:%s:repository/%s", pulumimock.Region, pulumimock.Account, catalog.RepositoryName(cfg))}},
		{Actions: []string{policy.ECRAuthAction}, Resources: []string{"*"}},
	}
	for _, b := range spec.Tables {
		table, ok := cat.Table(b.Table)
		require.True(t, ok)
		actions, err := policy.TableActions(b.Access)
		require.NoError(t, err)
		arn := fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", pulumimock.Region, pulumimock.Account, table.Name)
		want = append(want, statement{Actions: actions, Resources: policy.TableResources(arn)})
	}
	for _, b := range spec.Buckets {
		actions, err := policy.BucketActions(b.Access)
		require.NoError(t, err)
		want = append(want, statement{Actions: actions, Resources: policy.BucketResources("arn:aws:s3:::" + cat.Buckets[0].Name)})
	}
	for _, b := range spec.Secrets {
		secret, ok := cat.Secret(b.Secret)
		require.True(t, ok)
		arn := fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-AbCdEf", pulumimock.Region, pulumimock.Account, secret.Name)
		want = append(want, statement{Actions: policy.SecretActions(), Resources: []string{arn}})
	}
	return want
}

func TestFunctionPoliciesMatchBindings(t *testing.T) {
	for _, demo := range []bool{true, false} {
		t.Run(fmt.Sprintf("demo permissions %v", demo), func(t *testing.T) {
			cfg := testConfig(models.StageDev)
			cfg.EnableDemoPermissions = demo
			mocks := deploy(t, cfg)

			for _, spec := range catalog.Functions(cfg) {
				prefix := string(spec.ID) + "Function-"
				var got []statement
				for _, rp := range mocks.OfType(rolePolicyType) {
					if !strings.HasPrefix(rp.Name, prefix) {
						continue
					}
					var doc policy.Document
					require.NoError(t, json.Unmarshal([]byte(rp.Input("policy")), &doc))
					require.Len(t, doc.Statement, 1, rp.Name)
					assert.Equal(t, "Allow", doc.Statement[0].Effect)
					got = append(got, statement{Actions: doc.Statement[0].Action, Resources: doc.Statement[0].Resource})
				}
				assert.ElementsMatch(t, expectedStatements(t, cfg, spec), got, spec.ID)
			}
		})
	}
}

func TestFunctionEnvironmentMatchesBindings(t *testing.T) {
	cfg := testConfig(models.StageDev)
	mocks := deploy(t, cfg)
	cat := catalog.New(cfg)

	for _, spec := range cat.Functions {
		fn, ok := mocks.Get(functionType, string(spec.ID)+"Function")
		require.True(t, ok, spec.ID)
		assert.Equal(t, "ComputeStack-dev-"+spec.NameSuffix, fn.Input("name"))
		assert.Equal(t,
			fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s:%s", pulumimock.Account, pulumimock.Region, catalog.RepositoryName(cfg), cfg.ImageTag),
			fn.Input("imageUri"))

		want := map[string]string{"REGION": cfg.Region}
		for k, v := range spec.Environment {
			want[k] = v
		}
		for _, b := range spec.Tables {
			table, _ := cat.Table(b.Table)
			want[b.EnvVar] = table.Name
		}
		for _, b := range spec.Buckets {
			want[b.EnvVar] = cat.Buckets[0].Name
		}
		for _, b := range spec.Secrets {
			secret, _ := cat.Secret(b.Secret)
			want[b.EnvVar] = fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-AbCdEf", pulumimock.Region, pulumimock.Account, secret.Name)
		}
		assert.Equal(t, want, fn.Object("environment").StringMap("variables"), spec.ID)
	}
}

func TestOverview(t *testing.T) {
	mocks := deploy(t, testConfig(models.StageProd))

	board := mocks.OfType("aws:cloudwatch/dashboard:Dashboard")[0]
	assert.Equal(t, "LambdaActivityDashboard", board.Input("dashboardName"))

	var body struct {
		Widgets []struct {
			Properties struct {
				Metrics [][]string `json:"metrics"`
			} `json:"properties"`
		} `json:"widgets"`
	}
	require.NoError(t, json.Unmarshal([]byte(board.Input("dashboardBody")), &body))
	require.Len(t, body.Widgets, 14)
	assert.Equal(t, []string{"AWS/Lambda", "Invocations", "FunctionName", "ComputeStack-ApiTransform"}, body.Widgets[0].Properties.Metrics[0])
	assert.Equal(t, []string{"AWS/Lambda", "Errors", "FunctionName", "ComputeStack-ApiTransform"}, body.Widgets[1].Properties.Metrics[0])

	alarm, ok := mocks.Get("aws:cloudwatch/metricAlarm:MetricAlarm", "progress-errors")
	require.True(t, ok)
	assert.Equal(t, "Errors", alarm.Input("metricName"))
	assert.Equal(t, float64(5), alarm.Inputs["threshold"].NumberValue())
	assert.Equal(t, float64(2), alarm.Inputs["evaluationPeriods"].NumberValue())
	assert.Equal(t, "ComputeStack-UserProgress", alarm.StringMap("dimensions")["FunctionName"])
}

func TestDeployLogsFunctionGrants(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := testConfig(models.StageDev)

	mocks := pulumimock.New()
	require.NoError(t, pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := Deploy(ctx, cfg, logger)
		return err
	}, mocks.Options("dev")))

	granted := map[string][]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record struct {
			Msg      string   `json:"msg"`
			Function string   `json:"function"`
			Policies []string `json:"policies"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		if record.Msg == "function granted" {
			granted[record.Function] = record.Policies
		}
	}

	cat := catalog.New(cfg)
	require.Len(t, granted, len(cat.Functions))
	for _, spec := range cat.Functions {
		policies := granted[string(spec.ID)]
		require.GreaterOrEqual(t, len(policies), 2, spec.ID)
		assert.Equal(t, []string{"PullImage", "ImageRegistryAuth"}, policies[:2], spec.ID)
	}
}

func TestDeployIsDeterministic(t *testing.T) {
	first := deploy(t, testConfig(models.StageDev)).Registrations()
	second := deploy(t, testConfig(models.StageDev)).Registrations()
	assert.Equal(t, first, second)
}

func TestProgramFailsWithoutImageTagInCI(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("IMAGE_TAG", "")
	t.Setenv("STAGE", "")

	mocks := pulumimock.New()
	err := pulumi.RunErr(Program(discard), mocks.Options("dev"))
	assert.ErrorIs(t, err, config.ErrImageTagRequired)
	assert.Empty(t, mocks.Registrations())
}

func TestProgramUsesProviderRegion(t *testing.T) {
	for _, key := range []string{"CI", "IMAGE_TAG", "STAGE", "DEPLOY_ACCOUNT", "CDK_DEFAULT_ACCOUNT", "DEPLOY_REGION", "CDK_DEFAULT_REGION", "AWS_REGION"} {
		t.Setenv(key, "")
	}
	t.Setenv("PULUMI_CONFIG", `{"aws:region":"eu-west-1","thoughtful-python:stage":"prod","thoughtful-python:imageTag":"v1"}`)

	mocks := pulumimock.New()
	require.NoError(t, pulumi.RunErr(Program(discard), mocks.Options("prod")))

	bucket := mocks.OfType("aws:s3/bucketV2:BucketV2")[0]
	assert.Equal(t, "598791268315-eu-west-1-transformation-output-bucket", bucket.Input("bucket"))

	repo, ok := mocks.Get("aws:ecr/repository:Repository", "SampleAppDockerRepository")
	require.True(t, ok)
	assert.Equal(t, "sample_app_src_rep-598791268315-eu-west-1", repo.Input("name"))

	functions := mocks.OfType(functionType)
	require.NotEmpty(t, functions)
	for _, fn := range functions {
		assert.Equal(t, "eu-west-1", fn.Object("environment").StringMap("variables")["REGION"], fn.Name)
	}
}

func TestNewApiRejectsDanglingRoute(t *testing.T) {
	cfg := testConfig(models.StageDev)
	mocks := pulumimock.New()
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewApi(ctx, "ApiGatewayStack", &ApiArgs{
			Config:  cfg,
			Catalog: catalog.New(cfg),
			Compute: &Compute{Functions: nil},
		})
		return err
	}, mocks.Options("dev"))
	assert.ErrorIs(t, err, catalog.ErrUnknownTarget)
	assert.Empty(t, mocks.Registrations())
}

func TestNewApiRejectsDuplicateRouteKey(t *testing.T) {
	cfg := testConfig(models.StageDev)
	cat := catalog.New(cfg)
	cat.Routes = append(cat.Routes, models.RouteSpec{
		ID:       "TransformAgainRoute",
		Path:     "/transform_csv",
		Methods:  []models.HTTPMethod{models.MethodPost},
		Function: catalog.Transformation,
	})

	compute := &Compute{Functions: make(map[models.FunctionID]*constructs.DockerFunction)}
	for _, spec := range cat.Functions {
		compute.Functions[spec.ID] = nil
	}

	mocks := pulumimock.New()
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewApi(ctx, "ApiGatewayStack", &ApiArgs{Config: cfg, Catalog: cat, Compute: compute})
		return err
	}, mocks.Options("dev"))
	assert.ErrorIs(t, err, catalog.ErrDuplicate)
	assert.Empty(t, mocks.Registrations())
}

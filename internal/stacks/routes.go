package stacks

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/apigatewayv2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/constructs"
	"github.com/thoughtful-python/infra/pkg/config"
)

const (
	// GoogleIssuer is the issuer of Google ID tokens.
	GoogleIssuer = "https://accounts.google.com"

	apiName             = "ThoughtfulPythonHttpApi"
	corsMaxAgeSeconds   = 10 * 24 * 60 * 60
	authorizerCacheSecs = 300
	identitySource      = "$request.header.Authorization"

	accessLogFormat = `{"requestId":"$context.requestId","ip":"$context.identity.sourceIp","requestTime":"$context.requestTime","httpMethod":"$context.httpMethod","routeKey":"$context.routeKey","status":"$context.status","protocol":"$context.protocol","responseLength":"$context.responseLength","authorizerError":"$context.authorizer.error","integrationError":"$context.integrationErrorMessage"}`
)

// corsMethods are the methods browsers may use against the API.
var corsMethods = []string{"GET", "OPTIONS", "POST", "PUT"}

// ApiArgs configures the API routing stack.
type ApiArgs struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Compute *Compute
	Tags    pulumi.StringMap
}

// Api holds the HTTP API, its stage and authorizer, and the routes.
type Api struct {
	pulumi.ResourceState

	Api        *apigatewayv2.Api
	Endpoint   pulumi.StringOutput
	Authorizer *apigatewayv2.Authorizer
	Routes     []*constructs.ApiRoute
}

// NewApi declares the HTTP API and every catalog route. It fails before
// declaring anything when a route targets a function the compute stack lacks
// or when a path and method pair repeats.
func NewApi(ctx *pulumi.Context, name string, args *ApiArgs, opts ...pulumi.ResourceOption) (*Api, error) {
	if err := catalog.ValidateRoutes(args.Catalog.Routes, args.Compute.Has); err != nil {
		return nil, err
	}

	a := &Api{}
	if err := ctx.RegisterComponentResource("thoughtful:stacks:Api", name, a, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(a)
	cfg := args.Config
	qualifiedName := cfg.Qualify(apiName)

	api, err := apigatewayv2.NewApi(ctx, apiName, &apigatewayv2.ApiArgs{
		Name:         pulumi.String(qualifiedName),
		ProtocolType: pulumi.String("HTTP"),
		Description:  pulumi.String("HTTP API for the various apps"),
		CorsConfiguration: &apigatewayv2.ApiCorsConfigurationArgs{
			AllowOrigins: pulumi.ToStringArray(cfg.AllowedOrigins),
			AllowMethods: pulumi.ToStringArray(corsMethods),
			AllowHeaders: pulumi.ToStringArray([]string{"Content-Type", "Authorization"}),
			MaxAge:       pulumi.Int(corsMaxAgeSeconds),
		},
		Tags: args.Tags,
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP API: %w", err)
	}
	a.Api = api
	a.Endpoint = api.ApiEndpoint

	accessLogs, err := cloudwatch.NewLogGroup(ctx, apiName+"-access-logs", &cloudwatch.LogGroupArgs{
		Name:            pulumi.String(fmt.Sprintf("/aws/apigateway/%s", qualifiedName)),
		RetentionInDays: pulumi.Int(cfg.LogRetentionDays),
		Tags:            args.Tags,
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create API access log group: %w", err)
	}

	_, err = apigatewayv2.NewStage(ctx, apiName+"-default-stage", &apigatewayv2.StageArgs{
		ApiId:      api.ID(),
		Name:       pulumi.String("$default"),
		AutoDeploy: pulumi.Bool(true),
		AccessLogSettings: &apigatewayv2.StageAccessLogSettingsArgs{
			DestinationArn: accessLogs.Arn,
			Format:         pulumi.String(accessLogFormat),
		},
		Tags: args.Tags,
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create API stage: %w", err)
	}

	routeAuthorizer, err := a.newAuthorizer(ctx, cfg, args.Compute, api)
	if err != nil {
		return nil, err
	}

	for _, spec := range args.Catalog.Routes {
		route, err := constructs.NewApiRoute(ctx, spec.ID, &constructs.ApiRouteArgs{
			Spec:         spec,
			ApiID:        api.ID(),
			ExecutionArn: api.ExecutionArn,
			Handler:      args.Compute.Functions[spec.Function],
			Authorizer:   routeAuthorizer,
		}, parent)
		if err != nil {
			return nil, err
		}
		a.Routes = append(a.Routes, route)
	}

	if err := ctx.RegisterResourceOutputs(a, pulumi.Map{
		"apiEndpoint": a.Endpoint,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Api) newAuthorizer(ctx *pulumi.Context, cfg *config.Config, compute *Compute, api *apigatewayv2.Api) (*constructs.RouteAuthorizer, error) {
	parent := pulumi.Parent(a)

	if cfg.AuthorizerMode == config.AuthorizerJWT {
		authorizer, err := apigatewayv2.NewAuthorizer(ctx, "GoogleJwtAuthorizer", &apigatewayv2.AuthorizerArgs{
			ApiId:           api.ID(),
			Name:            pulumi.String("GoogleJwtAuthorizer"),
			AuthorizerType:  pulumi.String("JWT"),
			IdentitySources: pulumi.ToStringArray([]string{identitySource}),
			JwtConfiguration: &apigatewayv2.AuthorizerJwtConfigurationArgs{
				Issuer:    pulumi.String(GoogleIssuer),
				Audiences: pulumi.ToStringArray([]string{cfg.GoogleClientID}),
			},
		}, parent)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT authorizer: %w", err)
		}
		a.Authorizer = authorizer
		return &constructs.RouteAuthorizer{ID: authorizer.ID(), Type: "JWT"}, nil
	}

	fn, ok := compute.Functions[catalog.Authorizer]
	if !ok {
		return nil, fmt.Errorf("authorizer function %q: %w", catalog.Authorizer, catalog.ErrUnknownTarget)
	}

	authorizer, err := apigatewayv2.NewAuthorizer(ctx, "LambdaAuthorizer", &apigatewayv2.AuthorizerArgs{
		ApiId:                          api.ID(),
		Name:                           pulumi.String("LambdaAuthorizer"),
		AuthorizerType:                 pulumi.String("REQUEST"),
		AuthorizerUri:                  fn.InvokeArn,
		AuthorizerPayloadFormatVersion: pulumi.String("2.0"),
		AuthorizerResultTtlInSeconds:   pulumi.Int(authorizerCacheSecs),
		EnableSimpleResponses:          pulumi.Bool(false),
		IdentitySources:                pulumi.ToStringArray([]string{identitySource}),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create lambda authorizer: %w", err)
	}
	a.Authorizer = authorizer

	_, err = lambda.NewPermission(ctx, "LambdaAuthorizer-invoke", &lambda.PermissionArgs{
		Action:    pulumi.String("lambda:InvokeFunction"),
		Function:  fn.Name,
		Principal: pulumi.String("apigateway.amazonaws.com"),
		SourceArn: pulumi.Sprintf("%s/authorizers/*", api.ExecutionArn),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer invoke permission: %w", err)
	}

	return &constructs.RouteAuthorizer{ID: authorizer.ID(), Type: "CUSTOM"}, nil
}

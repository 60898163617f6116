package constructs

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/apigatewayv2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/models"
)

// RouteAuthorizer is attached to protected routes.
type RouteAuthorizer struct {
	ID pulumi.StringInput
	// Type is the route authorization type, CUSTOM or JWT.
	Type string
}

// ApiRouteArgs configures an ApiRoute.
type ApiRouteArgs struct {
	Spec         models.RouteSpec
	ApiID        pulumi.StringInput
	ExecutionArn pulumi.StringInput
	Handler      *DockerFunction
	// Authorizer is required when Spec.Protected is set.
	Authorizer *RouteAuthorizer
}

// ApiRoute is a Lambda proxy integration and one HTTP API route per method.
type ApiRoute struct {
	pulumi.ResourceState

	Spec        models.RouteSpec
	Integration *apigatewayv2.Integration
	Routes      []*apigatewayv2.Route
}

// NewApiRoute declares the integration, the invoke permission and the routes.
func NewApiRoute(ctx *pulumi.Context, name string, args *ApiRouteArgs, opts ...pulumi.ResourceOption) (*ApiRoute, error) {
	if args.Spec.Protected && args.Authorizer == nil {
		return nil, fmt.Errorf("route %s is protected but no authorizer was given", args.Spec.Path)
	}

	r := &ApiRoute{Spec: args.Spec}
	if err := ctx.RegisterComponentResource("thoughtful:constructs:ApiRoute", name, r, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(r)

	_, err := lambda.NewPermission(ctx, name+"-invoke", &lambda.PermissionArgs{
		Action:    pulumi.String("lambda:InvokeFunction"),
		Function:  args.Handler.Name,
		Principal: pulumi.String("apigateway.amazonaws.com"),
		SourceArn: pulumi.Sprintf("%s/*/*", args.ExecutionArn),
	}, parent)
	if err != nil {
		return nil, registerErr("invoke permission", name, err)
	}

	integration, err := apigatewayv2.NewIntegration(ctx, name+"-integration", &apigatewayv2.IntegrationArgs{
		ApiId:                args.ApiID,
		IntegrationType:      pulumi.String("AWS_PROXY"),
		IntegrationUri:       args.Handler.Arn,
		IntegrationMethod:    pulumi.String("POST"),
		PayloadFormatVersion: pulumi.String("2.0"),
	}, parent)
	if err != nil {
		return nil, registerErr("integration", name, err)
	}
	r.Integration = integration

	target := integration.ID().ApplyT(func(id string) string {
		return fmt.Sprintf("integrations/%s", id)
	}).(pulumi.StringOutput)

	for i, key := range args.Spec.RouteKeys() {
		routeArgs := &apigatewayv2.RouteArgs{
			ApiId:             args.ApiID,
			RouteKey:          pulumi.String(key),
			Target:            target,
			AuthorizationType: pulumi.String("NONE"),
		}
		if args.Spec.Protected {
			routeArgs.AuthorizationType = pulumi.String(args.Authorizer.Type)
			routeArgs.AuthorizerId = args.Authorizer.ID
		}

		route, err := apigatewayv2.NewRoute(ctx, fmt.Sprintf("%s-%s", name, args.Spec.Methods[i]), routeArgs, parent)
		if err != nil {
			return nil, registerErr("route", key, err)
		}
		r.Routes = append(r.Routes, route)
	}

	if err := ctx.RegisterResourceOutputs(r, pulumi.Map{
		"integrationId": integration.ID(),
	}); err != nil {
		return nil, err
	}
	return r, nil
}

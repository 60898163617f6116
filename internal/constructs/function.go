package constructs

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/internal/policy"
)

const (
	defaultTimeoutSeconds = 60
	defaultMemorySize     = 256

	basicExecutionPolicyArn = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"
)

// DockerFunctionArgs configures a DockerFunction.
type DockerFunctionArgs struct {
	Spec models.FunctionSpec
	// StackName prefixes the function name.
	StackName string
	Region    string

	RepositoryURL pulumi.StringInput
	RepositoryArn pulumi.StringInput
	ImageTag      string

	// Environment is merged over Spec.Environment and REGION.
	Environment      pulumi.StringMap
	LogRetentionDays int
	Tags             pulumi.StringMap
}

// DockerFunction is a container image Lambda function with its own execution
// role and log group.
type DockerFunction struct {
	pulumi.ResourceState

	Spec         models.FunctionSpec
	FunctionName string
	Function     *lambda.Function
	Role         *iam.Role
	LogGroup     *cloudwatch.LogGroup

	Arn       pulumi.StringOutput
	InvokeArn pulumi.StringOutput
	Name      pulumi.StringOutput

	name   string
	grants []string
}

// NewDockerFunction declares the role, log group and function.
func NewDockerFunction(ctx *pulumi.Context, name string, args *DockerFunctionArgs, opts ...pulumi.ResourceOption) (*DockerFunction, error) {
	functionName := fmt.Sprintf("%s-%s", args.StackName, args.Spec.NameSuffix)
	f := &DockerFunction{Spec: args.Spec, FunctionName: functionName, name: name}
	if err := ctx.RegisterComponentResource("thoughtful:constructs:DockerFunction", name, f, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(f)

	assumeRole, err := policy.AssumeRole("lambda.amazonaws.com")
	if err != nil {
		return nil, err
	}
	role, err := iam.NewRole(ctx, name+"-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(assumeRole),
		Description:      pulumi.String(fmt.Sprintf("Execution role for %s", functionName)),
		Tags:             args.Tags,
	}, parent)
	if err != nil {
		return nil, registerErr("role", name, err)
	}
	f.Role = role

	basic, err := iam.NewRolePolicyAttachment(ctx, name+"-basic-execution", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String(basicExecutionPolicyArn),
	}, parent)
	if err != nil {
		return nil, registerErr("basic execution attachment", name, err)
	}

	pullResources := pulumi.StringArray{args.RepositoryArn}
	if err := f.AddToRolePolicy(ctx, "PullImage", policy.ECRPullActions(), pullResources); err != nil {
		return nil, err
	}
	if err := f.AddToRolePolicy(ctx, "ImageRegistryAuth", []string{policy.ECRAuthAction}, pulumi.StringArray{pulumi.String("*")}); err != nil {
		return nil, err
	}

	logGroup, err := cloudwatch.NewLogGroup(ctx, name+"-logs", &cloudwatch.LogGroupArgs{
		Name:            pulumi.String(fmt.Sprintf("/aws/lambda/%s", functionName)),
		RetentionInDays: pulumi.Int(args.LogRetentionDays),
		Tags:            args.Tags,
	}, parent)
	if err != nil {
		return nil, registerErr("log group", name, err)
	}
	f.LogGroup = logGroup

	variables := pulumi.StringMap{
		"REGION": pulumi.String(args.Region),
	}
	for k, v := range args.Spec.Environment {
		variables[k] = pulumi.String(v)
	}
	for k, v := range args.Environment {
		variables[k] = v
	}

	timeout := args.Spec.TimeoutSeconds
	if timeout == 0 {
		timeout = defaultTimeoutSeconds
	}
	memory := args.Spec.MemorySize
	if memory == 0 {
		memory = defaultMemorySize
	}

	imageURI := pulumi.Sprintf("%s:%s", args.RepositoryURL, args.ImageTag)
	fn, err := lambda.NewFunction(ctx, name, &lambda.FunctionArgs{
		Name:        pulumi.String(functionName),
		Description: pulumi.String(args.Spec.Description),
		Role:        role.Arn,
		PackageType: pulumi.String("Image"),
		ImageUri:    imageURI,
		ImageConfig: &lambda.FunctionImageConfigArgs{
			Commands: pulumi.ToStringArray(args.Spec.Command),
		},
		Environment: &lambda.FunctionEnvironmentArgs{
			Variables: variables,
		},
		MemorySize: pulumi.Int(memory),
		Timeout:    pulumi.Int(timeout),
		Tags:       args.Tags,
	}, parent, pulumi.DependsOn([]pulumi.Resource{logGroup, basic}))
	if err != nil {
		return nil, registerErr("function", name, err)
	}
	f.Function = fn
	f.Arn = fn.Arn
	f.InvokeArn = fn.InvokeArn
	f.Name = fn.Name

	if err := ctx.RegisterResourceOutputs(f, pulumi.Map{
		"functionArn":  f.Arn,
		"functionName": f.Name,
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// AddToRolePolicy attaches one inline policy holding a single statement to
// the function's role.
func (f *DockerFunction) AddToRolePolicy(ctx *pulumi.Context, sid string, actions []string, resources pulumi.StringArrayInput) error {
	for _, existing := range f.grants {
		if existing == sid {
			return fmt.Errorf("function %s: policy %s already attached", f.FunctionName, sid)
		}
	}

	_, err := iam.NewRolePolicy(ctx, fmt.Sprintf("%s-%s", f.name, sid), &iam.RolePolicyArgs{
		Name:   pulumi.String(sid),
		Role:   f.Role.Name,
		Policy: policyJSON(sid, actions, resources),
	}, pulumi.Parent(f))
	if err != nil {
		return registerErr("role policy", sid, err)
	}
	f.grants = append(f.grants, sid)
	return nil
}

// Grants returns the inline policies attached so far, in attachment order.
func (f *DockerFunction) Grants() []string {
	return append([]string(nil), f.grants...)
}

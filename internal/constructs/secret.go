package constructs

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/secretsmanager"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/internal/policy"
)

// ManagedSecretArgs configures a ManagedSecret.
type ManagedSecretArgs struct {
	Spec models.SecretSpec
	Tags pulumi.StringMap
}

// ManagedSecret is a Secrets Manager secret. When Spec.Generate is set, a
// random value is stored once and later updates leave it alone.
type ManagedSecret struct {
	pulumi.ResourceState

	Spec   models.SecretSpec
	Secret *secretsmanager.Secret
	Arn    pulumi.StringOutput
	Name   pulumi.StringOutput
}

// NewManagedSecret declares the secret and, if requested, its generated value.
func NewManagedSecret(ctx *pulumi.Context, name string, args *ManagedSecretArgs, opts ...pulumi.ResourceOption) (*ManagedSecret, error) {
	s := &ManagedSecret{Spec: args.Spec}
	if err := ctx.RegisterComponentResource("thoughtful:constructs:ManagedSecret", name, s, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(s)

	secret, err := secretsmanager.NewSecret(ctx, name, &secretsmanager.SecretArgs{
		Name:        pulumi.String(args.Spec.Name),
		Description: pulumi.String(args.Spec.Description),
		Tags:        args.Tags,
	}, parent, pulumi.RetainOnDelete(true))
	if err != nil {
		return nil, registerErr("secret", name, err)
	}
	s.Secret = secret
	s.Arn = secret.Arn
	s.Name = secret.Name

	if gen := args.Spec.Generate; gen != nil {
		password := secretsmanager.GetRandomPasswordOutput(ctx, secretsmanager.GetRandomPasswordOutputArgs{
			PasswordLength:     pulumi.Int(gen.Length),
			ExcludePunctuation: pulumi.Bool(gen.ExcludePunctuation),
		}, pulumi.Parent(s))

		_, err = secretsmanager.NewSecretVersion(ctx, name+"-value", &secretsmanager.SecretVersionArgs{
			SecretId:     secret.ID(),
			SecretString: password.RandomPassword(),
		}, parent, pulumi.IgnoreChanges([]string{"secretString"}))
		if err != nil {
			return nil, registerErr("secret value", name, err)
		}
	}

	if err := ctx.RegisterResourceOutputs(s, pulumi.Map{
		"secretArn":  s.Arn,
		"secretName": s.Name,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// GrantRead lets grantee read the secret value.
func (s *ManagedSecret) GrantRead(ctx *pulumi.Context, grantee Grantee) error {
	resources := pulumi.StringArray{s.Arn}
	return grantee.AddToRolePolicy(ctx, statementID("read", "secret", string(s.Spec.ID)), policy.SecretActions(), resources)
}

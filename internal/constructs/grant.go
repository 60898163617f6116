// Package constructs holds Pulumi component resources wrapping AWS resources
// with the platform's defaults.
package constructs

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/policy"
)

// Grantee is anything that can receive an inline IAM policy statement.
type Grantee interface {
	AddToRolePolicy(ctx *pulumi.Context, sid string, actions []string, resources pulumi.StringArrayInput) error
}

// policyJSON renders a single Allow statement once its resources resolve.
func policyJSON(sid string, actions []string, resources pulumi.StringArrayInput) pulumi.StringOutput {
	return resources.ToStringArrayOutput().ApplyT(func(arns []string) (string, error) {
		return policy.NewDocument(policy.Allow(sid, actions, arns)).JSON()
	}).(pulumi.StringOutput)
}

// statementID turns free form words into a valid IAM Sid.
func statementID(words ...string) string {
	var b strings.Builder
	for _, w := range words {
		upper := true
		for _, r := range w {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				upper = true
				continue
			}
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func registerErr(kind, name string, err error) error {
	return fmt.Errorf("failed to create %s %s: %w", kind, name, err)
}

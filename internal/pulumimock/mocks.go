// Package pulumimock records resource registrations made under the Pulumi mock
// monitor and fills in the outputs the platform's resources read.
package pulumimock

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	// Account and Region appear in every generated ARN.
	Account = "123456789012"
	Region  = "us-east-2"

	// RandomPassword is returned for every generated secret value.
	RandomPassword = "mock-random-password"

	randomPasswordToken = "aws:secretsmanager/getRandomPassword:getRandomPassword"
	rootStackType       = "pulumi:pulumi:Stack"
)

// Registration is one resource registered with the mock monitor.
type Registration struct {
	Type   string
	Name   string
	Custom bool
	Inputs resource.PropertyMap
}

// Input returns the string value of an input property, or "" when unset.
func (r Registration) Input(key string) string {
	v, ok := r.Inputs[resource.PropertyKey(key)]
	if !ok {
		return ""
	}
	if v.IsSecret() {
		v = v.SecretValue().Element
	}
	if !v.IsString() {
		return ""
	}
	return v.StringValue()
}

// Object returns a nested object input, such as environment on a function.
func (r Registration) Object(key string) Registration {
	v, ok := r.Inputs[resource.PropertyKey(key)]
	if !ok || !v.IsObject() {
		return Registration{Inputs: resource.PropertyMap{}}
	}
	return Registration{Inputs: v.ObjectValue()}
}

// Strings returns a string array input.
func (r Registration) Strings(key string) []string {
	v, ok := r.Inputs[resource.PropertyKey(key)]
	if !ok || !v.IsArray() {
		return nil
	}
	var out []string
	for _, e := range v.ArrayValue() {
		if e.IsString() {
			out = append(out, e.StringValue())
		}
	}
	return out
}

// StringMap returns an object input whose values are all strings.
func (r Registration) StringMap(key string) map[string]string {
	obj := r.Object(key)
	out := make(map[string]string, len(obj.Inputs))
	for k := range obj.Inputs {
		out[string(k)] = obj.Input(string(k))
	}
	return out
}

// Mocks implements pulumi.MockResourceMonitor.
type Mocks struct {
	mu            sync.Mutex
	registrations []Registration
	invokes       []string
}

// New returns an empty recorder.
func New() *Mocks {
	return &Mocks{}
}

// Options returns the run options installing m as the mock monitor.
func (m *Mocks) Options(stack string) pulumi.RunOption {
	return pulumi.WithMocks("thoughtful-python", stack, m)
}

// NewResource records the registration and returns derived outputs.
func (m *Mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	if args.TypeToken != rootStackType {
		m.mu.Lock()
		m.registrations = append(m.registrations, Registration{
			Type:   args.TypeToken,
			Name:   args.Name,
			Custom: args.Custom,
			Inputs: args.Inputs.Copy(),
		})
		m.mu.Unlock()
	}

	outputs := args.Inputs.Copy()
	id := args.Name + "-id"
	set := func(key, value string) {
		outputs[resource.PropertyKey(key)] = resource.NewStringProperty(value)
	}
	input := Registration{Inputs: args.Inputs}.Input

	switch args.TypeToken {
	case "aws:s3/bucketV2:BucketV2":
		bucket := input("bucket")
		set("arn", "arn:aws:s3:::"+bucket)
		id = bucket
	case "aws:dynamodb/table:Table":
		set("arn", fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", Region, Account, input("name")))
		id = input("name")
	case "aws:secretsmanager/secret:Secret":
		set("arn", fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-AbCdEf", Region, Account, input("name")))
	case "aws:ecr/repository:Repository":
		set("arn", fmt.Sprintf("arn:aws:ecr:%s:%s:repository/%s", Region, Account, input("name")))
		set("repositoryUrl", fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s", Account, Region, input("name")))
	case "aws:iam/role:Role":
		if input("name") == "" {
			set("name", args.Name)
		}
		set("arn", fmt.Sprintf("arn:aws:iam::%s:role/%s", Account, args.Name))
	case "aws:lambda/function:Function":
		arn := fmt.Sprintf("arn:aws:lambda:%s:%s:function:%s", Region, Account, input("name"))
		set("arn", arn)
		set("invokeArn", fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations", Region, arn))
	case "aws:apigatewayv2/api:Api":
		id = "api1234"
		set("apiEndpoint", fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com", id, Region))
		set("executionArn", fmt.Sprintf("arn:aws:execute-api:%s:%s:%s", Region, Account, id))
	case "aws:cloudwatch/logGroup:LogGroup":
		set("arn", fmt.Sprintf("arn:aws:logs:%s:%s:log-group:%s", Region, Account, input("name")))
	default:
		if _, ok := outputs["arn"]; !ok && args.Custom {
			set("arn", fmt.Sprintf("arn:mock:%s:%s", args.TypeToken, args.Name))
		}
	}
	return id, outputs, nil
}

// Call answers provider function invocations.
func (m *Mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	m.mu.Lock()
	m.invokes = append(m.invokes, args.Token)
	m.mu.Unlock()

	if args.Token == randomPasswordToken {
		return resource.PropertyMap{
			"randomPassword": resource.NewStringProperty(RandomPassword),
		}, nil
	}
	return resource.PropertyMap{}, nil
}

// Registrations returns every registration sorted by type and name.
func (m *Mocks) Registrations() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]Registration(nil), m.registrations...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// OfType returns the registrations of one type token, sorted by name.
func (m *Mocks) OfType(typeToken string) []Registration {
	var out []Registration
	for _, r := range m.Registrations() {
		if r.Type == typeToken {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the registration with the given type and name.
func (m *Mocks) Get(typeToken, name string) (Registration, bool) {
	for _, r := range m.OfType(typeToken) {
		if r.Name == name {
			return r, true
		}
	}
	return Registration{}, false
}

// Invokes returns the tokens of every provider function called.
func (m *Mocks) Invokes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.invokes...)
}

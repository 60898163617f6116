package models

import (
	"fmt"
	"strings"
)

// AttributeType is a DynamoDB scalar attribute type.
type AttributeType string

const (
	AttributeString AttributeType = "S"
	AttributeNumber AttributeType = "N"
	AttributeBinary AttributeType = "B"
)

// BillingMode is the DynamoDB capacity mode.
type BillingMode string

const (
	BillingPayPerRequest BillingMode = "PAY_PER_REQUEST"
	BillingProvisioned   BillingMode = "PROVISIONED"
)

// RemovalPolicy controls what happens to a resource when it leaves the program.
type RemovalPolicy string

const (
	// RemovalRetain keeps the cloud resource when it is removed from the program.
	RemovalRetain RemovalPolicy = "retain"
	// RemovalDestroy deletes the cloud resource with the program.
	RemovalDestroy RemovalPolicy = "destroy"
)

// KeyAttribute is one attribute of a key schema.
type KeyAttribute struct {
	Name string
	Type AttributeType
}

// IndexSpec describes a global secondary index.
type IndexSpec struct {
	Name         string
	PartitionKey KeyAttribute
	SortKey      *KeyAttribute
}

// TableID identifies a table inside the catalog.
type TableID string

// TableSpec describes a DynamoDB table. The key schema cannot change once the
// table has been deployed.
type TableSpec struct {
	ID           TableID
	Name         string
	PartitionKey KeyAttribute
	SortKey      *KeyAttribute
	Indexes      []IndexSpec
	TTLAttribute string
	BillingMode  BillingMode
	Removal      RemovalPolicy
}

// Attributes returns every attribute used by the table and index key schemas,
// in first-use order and without duplicates.
func (t TableSpec) Attributes() []KeyAttribute {
	seen := make(map[string]bool)
	var attrs []KeyAttribute
	add := func(k *KeyAttribute) {
		if k == nil || seen[k.Name] {
			return
		}
		seen[k.Name] = true
		attrs = append(attrs, *k)
	}

	add(&t.PartitionKey)
	add(t.SortKey)
	for i := range t.Indexes {
		add(&t.Indexes[i].PartitionKey)
		add(t.Indexes[i].SortKey)
	}
	return attrs
}

// Validate checks the key schema declaration.
func (t TableSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table %q: name is required", t.ID)
	}
	if t.PartitionKey.Name == "" {
		return fmt.Errorf("table %q: partition key is required", t.ID)
	}

	types := make(map[string]AttributeType)
	for _, a := range t.keyAttributes() {
		if prev, ok := types[a.Name]; ok && prev != a.Type {
			return fmt.Errorf("table %q: attribute %q declared as both %s and %s", t.ID, a.Name, prev, a.Type)
		}
		types[a.Name] = a.Type
	}

	indexes := make(map[string]bool)
	for _, idx := range t.Indexes {
		if idx.Name == "" || idx.PartitionKey.Name == "" {
			return fmt.Errorf("table %q: index needs a name and a partition key", t.ID)
		}
		if indexes[idx.Name] {
			return fmt.Errorf("table %q: duplicate index %q", t.ID, idx.Name)
		}
		indexes[idx.Name] = true
	}
	return nil
}

func (t TableSpec) keyAttributes() []KeyAttribute {
	attrs := []KeyAttribute{t.PartitionKey}
	if t.SortKey != nil {
		attrs = append(attrs, *t.SortKey)
	}
	for _, idx := range t.Indexes {
		attrs = append(attrs, idx.PartitionKey)
		if idx.SortKey != nil {
			attrs = append(attrs, *idx.SortKey)
		}
	}
	return attrs
}

// SecretID identifies a secret inside the catalog.
type SecretID string

// GeneratedValue describes a value generated once when the secret is created.
type GeneratedValue struct {
	Length             int
	ExcludePunctuation bool
}

// SecretSpec describes a Secrets Manager secret.
type SecretSpec struct {
	ID          SecretID
	Name        string
	Description string
	Generate    *GeneratedValue
}

// BucketID identifies a bucket inside the catalog.
type BucketID string

// BucketSpec describes an S3 bucket.
type BucketSpec struct {
	ID         BucketID
	Name       string
	PublicRead bool
	Versioned  bool
	Removal    RemovalPolicy
}

// FunctionID identifies a compute function inside the catalog.
type FunctionID string

// TableBinding injects a table name into a function and grants access to it.
type TableBinding struct {
	Table  TableID
	EnvVar string
	Access Access
}

// BucketBinding injects a bucket name into a function and grants access to it.
type BucketBinding struct {
	Bucket BucketID
	EnvVar string
	Access Access
}

// SecretBinding injects a secret ARN into a function and grants read access.
type SecretBinding struct {
	Secret SecretID
	EnvVar string
}

// FunctionSpec describes a container image compute function.
type FunctionSpec struct {
	ID             FunctionID
	NameSuffix     string
	Description    string
	Command        []string
	Environment    map[string]string
	Tables         []TableBinding
	Buckets        []BucketBinding
	Secrets        []SecretBinding
	MemorySize     int
	TimeoutSeconds int
}

// HTTPMethod is an HTTP method accepted by a route.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodOptions HTTPMethod = "OPTIONS"
)

// RouteSpec maps a path and its methods to a function.
type RouteSpec struct {
	ID        string
	Path      string
	Methods   []HTTPMethod
	Function  FunctionID
	Protected bool
}

// RouteKeys returns the API Gateway route keys, one per method.
func (r RouteSpec) RouteKeys() []string {
	keys := make([]string, 0, len(r.Methods))
	for _, m := range r.Methods {
		keys = append(keys, fmt.Sprintf("%s %s", strings.ToUpper(string(m)), r.Path))
	}
	return keys
}

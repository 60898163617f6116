// Package schemacheck compares the key schemas of deployed DynamoDB tables
// with the catalog before an update is applied.
package schemacheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/thoughtful-python/infra/internal/models"
)

// ErrKeySchemaDrift is returned when a deployed table's key schema differs from the catalog.
var ErrKeySchemaDrift = errors.New("key schema drift")

// Client is the subset of the DynamoDB API the checker uses.
type Client interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Status is the outcome of checking one table.
type Status string

const (
	StatusMatch   Status = "match"
	StatusMissing Status = "missing"
	StatusDrift   Status = "drift"
)

// Result reports one table.
type Result struct {
	Table  string
	Status Status
	// Differences lists what differs when Status is StatusDrift.
	Differences []string
}

// Checker describes tables and compares them with their specs.
type Checker struct {
	client Client
	logger *slog.Logger
}

// New creates a checker.
func New(client Client, logger *slog.Logger) *Checker {
	return &Checker{client: client, logger: logger}
}

// Check describes every table. Tables that do not exist yet pass. The error
// wraps ErrKeySchemaDrift when any deployed table differs.
func (c *Checker) Check(ctx context.Context, tables []models.TableSpec) ([]Result, error) {
	results := make([]Result, 0, len(tables))
	var drifted []string

	for _, spec := range tables {
		result, err := c.checkTable(ctx, spec)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		switch result.Status {
		case StatusDrift:
			drifted = append(drifted, spec.Name)
			c.logger.Warn("table key schema differs",
				slog.String("table", spec.Name),
				slog.Any("differences", result.Differences),
			)
		case StatusMissing:
			c.logger.Info("table not deployed yet", slog.String("table", spec.Name))
		default:
			c.logger.Debug("table key schema matches", slog.String("table", spec.Name))
		}
	}

	if len(drifted) > 0 {
		return results, fmt.Errorf("%w: %v", ErrKeySchemaDrift, drifted)
	}
	return results, nil
}

func (c *Checker) checkTable(ctx context.Context, spec models.TableSpec) (Result, error) {
	out, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(spec.Name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return Result{Table: spec.Name, Status: StatusMissing}, nil
		}
		return Result{}, fmt.Errorf("failed to describe table %s: %w", spec.Name, err)
	}
	if out.Table == nil {
		return Result{}, fmt.Errorf("describe table %s returned no table", spec.Name)
	}

	diffs := Compare(spec, out.Table)
	if len(diffs) > 0 {
		return Result{Table: spec.Name, Status: StatusDrift, Differences: diffs}, nil
	}
	return Result{Table: spec.Name, Status: StatusMatch}, nil
}

// Compare returns the differences between the table's declared key schema
// and the deployed one. Indexes and non-key settings are not compared.
func Compare(spec models.TableSpec, table *types.TableDescription) []string {
	deployed := make(map[types.KeyType]string)
	for _, k := range table.KeySchema {
		deployed[k.KeyType] = aws.ToString(k.AttributeName)
	}
	attrTypes := make(map[string]types.ScalarAttributeType)
	for _, a := range table.AttributeDefinitions {
		attrTypes[aws.ToString(a.AttributeName)] = a.AttributeType
	}

	var diffs []string
	compareKey := func(keyType types.KeyType, want *models.KeyAttribute) {
		got, ok := deployed[keyType]
		switch {
		case want == nil && ok:
			diffs = append(diffs, fmt.Sprintf("%s key: deployed %q, declared none", keyType, got))
		case want != nil && !ok:
			diffs = append(diffs, fmt.Sprintf("%s key: deployed none, declared %q", keyType, want.Name))
		case want != nil && got != want.Name:
			diffs = append(diffs, fmt.Sprintf("%s key: deployed %q, declared %q", keyType, got, want.Name))
		case want != nil && string(attrTypes[got]) != string(want.Type):
			diffs = append(diffs, fmt.Sprintf("%s key %q: deployed type %s, declared %s", keyType, got, attrTypes[got], want.Type))
		}
	}

	compareKey(types.KeyTypeHash, &spec.PartitionKey)
	compareKey(types.KeyTypeRange, spec.SortKey)
	return diffs
}

package schemacheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoughtful-python/infra/internal/models"
)

type fakeDynamo struct {
	tables map[string]*types.TableDescription
	err    error
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	table, ok := f.tables[aws.ToString(in.TableName)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: table}, nil
}

func describe(name string, keys ...types.KeySchemaElement) *types.TableDescription {
	t := &types.TableDescription{TableName: aws.String(name), KeySchema: keys}
	for _, k := range keys {
		t.AttributeDefinitions = append(t.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: k.AttributeName,
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	return t
}

func key(name string, keyType types.KeyType) types.KeySchemaElement {
	return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: keyType}
}

func spec(name, pk, sk string) models.TableSpec {
	s := models.TableSpec{Name: name, PartitionKey: models.KeyAttribute{Name: pk, Type: models.AttributeString}}
	if sk != "" {
		s.SortKey = &models.KeyAttribute{Name: sk, Type: models.AttributeString}
	}
	return s
}

func newChecker(client Client) *Checker {
	return New(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompare(t *testing.T) {
	numeric := describe("Counter", key("file_type", types.KeyTypeHash))
	numeric.AttributeDefinitions[0].AttributeType = types.ScalarAttributeTypeN

	tests := []struct {
		name  string
		spec  models.TableSpec
		table *types.TableDescription
		want  int
	}{
		{"same hash key", spec("Progress", "userId", ""), describe("Progress", key("userId", types.KeyTypeHash)), 0},
		{"same composite key", spec("Entries", "userId", "versionId"), describe("Entries", key("userId", types.KeyTypeHash), key("versionId", types.KeyTypeRange)), 0},
		{"renamed hash key", spec("Progress", "userId", ""), describe("Progress", key("user_id", types.KeyTypeHash)), 1},
		{"added sort key", spec("Entries", "userId", "versionId"), describe("Entries", key("userId", types.KeyTypeHash)), 1},
		{"removed sort key", spec("Entries", "userId", ""), describe("Entries", key("userId", types.KeyTypeHash), key("versionId", types.KeyTypeRange)), 1},
		{"changed type", spec("Counter", "file_type", ""), numeric, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Compare(tt.spec, tt.table), tt.want)
		})
	}
}

func TestCheck(t *testing.T) {
	client := &fakeDynamo{tables: map[string]*types.TableDescription{
		"UserProgressTable": describe("UserProgressTable", key("userId", types.KeyTypeHash)),
	}}

	results, err := newChecker(client).Check(context.Background(), []models.TableSpec{
		spec("UserProgressTable", "userId", ""),
		spec("RefreshTokenTable", "userId", "tokenId"),
	})
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Table: "UserProgressTable", Status: StatusMatch},
		{Table: "RefreshTokenTable", Status: StatusMissing},
	}, results)
}

func TestCheckReportsDrift(t *testing.T) {
	client := &fakeDynamo{tables: map[string]*types.TableDescription{
		"LearningEntriesTable": describe("LearningEntriesTable", key("userId", types.KeyTypeHash), key("sectionId", types.KeyTypeRange)),
		"UserProgressTable":    describe("UserProgressTable", key("userId", types.KeyTypeHash)),
	}}

	results, err := newChecker(client).Check(context.Background(), []models.TableSpec{
		spec("LearningEntriesTable", "userId", "versionId"),
		spec("UserProgressTable", "userId", ""),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeySchemaDrift)
	assert.Contains(t, err.Error(), "LearningEntriesTable")
	require.Len(t, results, 2)
	assert.Equal(t, StatusDrift, results[0].Status)
	assert.Len(t, results[0].Differences, 1)
	assert.Equal(t, StatusMatch, results[1].Status)
}

func TestCheckPropagatesAPIErrors(t *testing.T) {
	denied := errors.New("AccessDeniedException")
	_, err := newChecker(&fakeDynamo{err: denied}).Check(context.Background(), []models.TableSpec{
		spec("UserProgressTable", "userId", ""),
	})
	assert.ErrorIs(t, err, denied)
	assert.NotErrorIs(t, err, ErrKeySchemaDrift)
}

package policy

import (
	"fmt"

	"github.com/thoughtful-python/infra/internal/models"
)

var (
	tableRead = []string{
		"dynamodb:BatchGetItem",
		"dynamodb:GetRecords",
		"dynamodb:GetShardIterator",
		"dynamodb:Query",
		"dynamodb:GetItem",
		"dynamodb:Scan",
		"dynamodb:ConditionCheckItem",
		"dynamodb:DescribeTable",
	}
	tableWrite = []string{
		"dynamodb:BatchWriteItem",
		"dynamodb:PutItem",
		"dynamodb:UpdateItem",
		"dynamodb:DeleteItem",
		"dynamodb:DescribeTable",
	}
	bucketRead = []string{
		"s3:GetObject*",
		"s3:GetBucket*",
		"s3:List*",
	}
	bucketWrite = []string{
		"s3:DeleteObject*",
		"s3:PutObject",
		"s3:PutObjectLegalHold",
		"s3:PutObjectRetention",
		"s3:PutObjectTagging",
		"s3:PutObjectVersionTagging",
		"s3:Abort*",
	}
	secretRead = []string{
		"secretsmanager:GetSecretValue",
		"secretsmanager:DescribeSecret",
	}
	ecrPull = []string{
		"ecr:BatchCheckLayerAvailability",
		"ecr:GetDownloadUrlForLayer",
		"ecr:BatchGetImage",
	}
)

// ECRAuthAction is granted on "*" next to the repository pull actions.
const ECRAuthAction = "ecr:GetAuthorizationToken"

// TableActions returns the DynamoDB actions of an access level.
func TableActions(access models.Access) ([]string, error) {
	return actionsFor(access, tableRead, tableWrite, "dynamodb:*")
}

// BucketActions returns the S3 actions of an access level.
func BucketActions(access models.Access) ([]string, error) {
	return actionsFor(access, bucketRead, bucketWrite, "s3:*")
}

// SecretActions returns the Secrets Manager actions needed to read a secret value.
func SecretActions() []string {
	return clone(secretRead)
}

// ECRPullActions returns the repository scoped actions needed to pull an image.
func ECRPullActions() []string {
	return clone(ecrPull)
}

// TableResources returns the ARNs a table grant covers: the table and its indexes.
func TableResources(tableArn string) []string {
	return []string{tableArn, tableArn + "/index/*"}
}

// BucketResources returns the ARNs a bucket grant covers: the bucket and its objects.
func BucketResources(bucketArn string) []string {
	return []string{bucketArn, bucketArn + "/*"}
}

func actionsFor(access models.Access, read, write []string, full string) ([]string, error) {
	switch access {
	case models.AccessRead:
		return clone(read), nil
	case models.AccessWrite:
		return clone(write), nil
	case models.AccessReadWrite:
		return union(read, write), nil
	case models.AccessFull:
		return []string{full}, nil
	default:
		return nil, fmt.Errorf("unknown access level %q", access)
	}
}

func union(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, a := range set {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

package catalog

import (
	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/pkg/config"
)

// Table identifiers
const (
	TransformationCounter models.TableID = "transformationCounter"
	UserProgress          models.TableID = "userProgress"
	LearningEntries       models.TableID = "learningEntries"
	Throttling            models.TableID = "throttling"
	UserPermissions       models.TableID = "userPermissions"
	RefreshTokens         models.TableID = "refreshTokens"
	UserProfiles          models.TableID = "userProfiles"
)

// OutputBucket holds the files produced by the transformation function.
const OutputBucket models.BucketID = "output"

// Secret identifiers
const (
	ChatbotAPIKey    models.SecretID = "chatbotApiKey"
	JWTSigningSecret models.SecretID = "jwtSigningSecret"
)

func str(name string) models.KeyAttribute {
	return models.KeyAttribute{Name: name, Type: models.AttributeString}
}

func strPtr(name string) *models.KeyAttribute {
	k := str(name)
	return &k
}

// Tables returns the platform tables in declaration order.
func Tables(cfg *config.Config) []models.TableSpec {
	table := func(id models.TableID, name string, pk models.KeyAttribute, sk *models.KeyAttribute) models.TableSpec {
		return models.TableSpec{
			ID:           id,
			Name:         cfg.Qualify(name),
			PartitionKey: pk,
			SortKey:      sk,
			BillingMode:  models.BillingPayPerRequest,
			Removal:      models.RemovalRetain,
		}
	}

	learning := table(LearningEntries, "LearningEntriesTable", str("userId"), strPtr("versionId"))
	learning.Indexes = []models.IndexSpec{{
		Name:         "UserFinalLearningEntriesIndex",
		PartitionKey: str("userId"),
		SortKey:      strPtr("finalEntryCreatedAt"),
	}}

	throttling := table(Throttling, "ThrottlingTable", str("userId"), strPtr("actionType"))
	throttling.TTLAttribute = "ttl"

	permissions := table(UserPermissions, "UserPermissionsTable", str("granterUserId"), strPtr("granteeUserId"))
	permissions.Indexes = []models.IndexSpec{{
		Name:         "GranteePermissionsIndex",
		PartitionKey: str("granteeUserId"),
		SortKey:      strPtr("granterUserId"),
	}}

	refresh := table(RefreshTokens, "RefreshTokenTable", str("userId"), strPtr("tokenId"))
	refresh.TTLAttribute = "ttl"

	return []models.TableSpec{
		table(TransformationCounter, "TransformationCounterTable", str("file_type"), nil),
		table(UserProgress, "UserProgressTable", str("userId"), nil),
		learning,
		throttling,
		permissions,
		refresh,
		table(UserProfiles, "UserProfilesTable", str("userId"), nil),
	}
}

// Buckets returns the platform buckets.
func Buckets(cfg *config.Config) []models.BucketSpec {
	return []models.BucketSpec{{
		ID:         OutputBucket,
		Name:       cfg.Qualify(cfg.Account + "-" + cfg.Region + "-transformation-output-bucket"),
		PublicRead: true,
		Removal:    models.RemovalRetain,
	}}
}

// Secrets returns the platform secrets.
func Secrets(cfg *config.Config) []models.SecretSpec {
	return []models.SecretSpec{
		{
			ID:          ChatbotAPIKey,
			Name:        cfg.SecretName("chatbot-api-key"),
			Description: "API key for the chatbot model provider. Set the value with: deployer secret set chatbotApiKey",
		},
		{
			ID:          JWTSigningSecret,
			Name:        cfg.SecretName("jwt-signing-secret"),
			Description: "Signing key for the platform's access and refresh tokens",
			Generate: &models.GeneratedValue{
				Length:             64,
				ExcludePunctuation: true,
			},
		},
	}
}

// RepositoryName returns the name of the container image repository.
func RepositoryName(cfg *config.Config) string {
	return "sample_app_src_rep-" + cfg.Account + "-" + cfg.Region
}

package catalog

import (
	"strconv"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/pkg/config"
)

// Function identifiers
const (
	Transformation   models.FunctionID = "transformation"
	Progress         models.FunctionID = "progress"
	LearningEntryFn  models.FunctionID = "learningEntries"
	PrimmFeedback    models.FunctionID = "primmFeedback"
	InstructorPortal models.FunctionID = "instructorPortal"
	Auth             models.FunctionID = "auth"
	Authorizer       models.FunctionID = "authorizer"
)

// Runtime environment variable names read by the functions.
const (
	EnvOutputBucket          = "OUTPUT_BUCKET_NAME"
	EnvCounterTable          = "FILE_TYPE_COUNTER_TABLE_NAME"
	EnvProgressTable         = "USER_PROGRESS_TABLE_NAME"
	EnvLearningEntriesTable  = "LEARNING_ENTRIES_TABLE_NAME"
	EnvThrottlingTable       = "THROTTLING_TABLE_NAME"
	EnvPermissionsTable      = "USER_PERMISSIONS_TABLE_NAME"
	EnvRefreshTokenTable     = "REFRESH_TOKEN_TABLE_NAME"
	EnvProfilesTable         = "USER_PROFILES_TABLE_NAME"
	EnvChatbotAPIKeySecret   = "CHATBOT_API_KEY_SECRET_ARN"
	EnvJWTSecret             = "JWT_SECRET_ARN"
	EnvGoogleClientID        = "GOOGLE_CLIENT_ID"
	EnvEnableTestAuth        = "ENABLE_TEST_AUTH"
	EnvEnableDemoPermissions = "ENABLE_DEMO_PERMISSIONS"
)

func handler(module string) []string {
	return []string{"aws_src_sample.lambdas." + module + "_lambda." + module + "_lambda_handler"}
}

// Functions returns the compute functions and their bindings. Bindings that
// depend on stage flags are resolved here.
func Functions(cfg *config.Config) []models.FunctionSpec {
	testAuth := strconv.FormatBool(cfg.EnableTestAuth)
	demoPermissions := strconv.FormatBool(cfg.EnableDemoPermissions)

	authTables := []models.TableBinding{
		{Table: UserProfiles, EnvVar: EnvProfilesTable, Access: models.AccessReadWrite},
		{Table: RefreshTokens, EnvVar: EnvRefreshTokenTable, Access: models.AccessReadWrite},
	}
	if cfg.EnableDemoPermissions {
		authTables = append(authTables, models.TableBinding{Table: UserPermissions, EnvVar: EnvPermissionsTable, Access: models.AccessReadWrite})
	}

	return []models.FunctionSpec{
		{
			ID:          Transformation,
			NameSuffix:  "ApiTransform",
			Description: "Handles API POST requests for CSV transformations.",
			Command:     []string{"aws_src_sample.lambdas.apig_post_lambda.api_post_lambda_handler"},
			Tables: []models.TableBinding{
				{Table: TransformationCounter, EnvVar: EnvCounterTable, Access: models.AccessReadWrite},
			},
			Buckets: []models.BucketBinding{
				{Bucket: OutputBucket, EnvVar: EnvOutputBucket, Access: models.AccessWrite},
			},
			MemorySize: 512,
		},
		{
			ID:          Progress,
			NameSuffix:  "UserProgress",
			Description: "Handles API requests that GET/SET user data",
			Command:     handler("user_progress"),
			Tables: []models.TableBinding{
				{Table: UserProgress, EnvVar: EnvProgressTable, Access: models.AccessReadWrite},
			},
		},
		{
			ID:          LearningEntryFn,
			NameSuffix:  "LearningEntries",
			Description: "Handles API requests that GET/SET learning entries (journal)",
			Command:     handler("learning_entries"),
			Tables: []models.TableBinding{
				{Table: LearningEntries, EnvVar: EnvLearningEntriesTable, Access: models.AccessReadWrite},
				{Table: Throttling, EnvVar: EnvThrottlingTable, Access: models.AccessReadWrite},
			},
			Secrets: []models.SecretBinding{
				{Secret: ChatbotAPIKey, EnvVar: EnvChatbotAPIKeySecret},
			},
		},
		{
			ID:          PrimmFeedback,
			NameSuffix:  "PrimmFeedback",
			Description: "Evaluates PRIMM prediction and explanation answers with the chatbot",
			Command:     handler("primm_feedback"),
			Tables: []models.TableBinding{
				{Table: Throttling, EnvVar: EnvThrottlingTable, Access: models.AccessReadWrite},
			},
			Secrets: []models.SecretBinding{
				{Secret: ChatbotAPIKey, EnvVar: EnvChatbotAPIKeySecret},
			},
		},
		{
			ID:          InstructorPortal,
			NameSuffix:  "InstructorPortal",
			Description: "Serves student progress and submissions to permitted instructors",
			Command:     handler("instructor_portal"),
			Environment: map[string]string{
				EnvEnableDemoPermissions: demoPermissions,
			},
			Tables: []models.TableBinding{
				{Table: UserPermissions, EnvVar: EnvPermissionsTable, Access: models.AccessRead},
				{Table: UserProgress, EnvVar: EnvProgressTable, Access: models.AccessRead},
				{Table: LearningEntries, EnvVar: EnvLearningEntriesTable, Access: models.AccessRead},
				{Table: UserProfiles, EnvVar: EnvProfilesTable, Access: models.AccessRead},
			},
		},
		{
			ID:          Auth,
			NameSuffix:  "Auth",
			Description: "Exchanges Google ID tokens for platform tokens and manages refresh tokens",
			Command:     handler("auth"),
			Environment: map[string]string{
				EnvGoogleClientID:        cfg.GoogleClientID,
				EnvEnableTestAuth:        testAuth,
				EnvEnableDemoPermissions: demoPermissions,
			},
			Tables: authTables,
			Secrets: []models.SecretBinding{
				{Secret: JWTSigningSecret, EnvVar: EnvJWTSecret},
			},
		},
		{
			ID:          Authorizer,
			NameSuffix:  "Authorizer",
			Description: "Validates platform access tokens for protected routes",
			Command:     handler("authorizer"),
			Environment: map[string]string{
				EnvEnableTestAuth: testAuth,
			},
			Secrets: []models.SecretBinding{
				{Secret: JWTSigningSecret, EnvVar: EnvJWTSecret},
			},
		},
	}
}

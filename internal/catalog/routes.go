package catalog

import "github.com/thoughtful-python/infra/internal/models"

func methods(m ...models.HTTPMethod) []models.HTTPMethod { return m }

// Routes returns the HTTP API routes.
func Routes() []models.RouteSpec {
	return []models.RouteSpec{
		{ID: "TransformCsvRoute", Path: "/transform_csv", Methods: methods(models.MethodPost), Function: Transformation},
		{ID: "UserProgressRoute", Path: "/progress", Methods: methods(models.MethodGet, models.MethodPut), Function: Progress, Protected: true},
		{ID: "LearningEntriesRoute", Path: "/learning-entries", Methods: methods(models.MethodGet), Function: LearningEntryFn, Protected: true},
		{ID: "ReflectionsRoute", Path: "/reflections/{lessonId}/sections/{sectionId}", Methods: methods(models.MethodGet, models.MethodPost), Function: LearningEntryFn, Protected: true},
		{ID: "PrimmFeedbackRoute", Path: "/primm-feedback", Methods: methods(models.MethodPost), Function: PrimmFeedback, Protected: true},
		{ID: "InstructorStudentsRoute", Path: "/instructor/students", Methods: methods(models.MethodGet), Function: InstructorPortal, Protected: true},
		{ID: "InstructorStudentUnitProgressRoute", Path: "/instructor/students/{studentId}/units/{unitId}/progress", Methods: methods(models.MethodGet), Function: InstructorPortal, Protected: true},
		{ID: "InstructorStudentLearningEntriesRoute", Path: "/instructor/students/{studentId}/learning-entries", Methods: methods(models.MethodGet), Function: InstructorPortal, Protected: true},
		{ID: "InstructorClassProgressRoute", Path: "/instructor/units/{unitId}/class-progress", Methods: methods(models.MethodGet), Function: InstructorPortal, Protected: true},
		{ID: "InstructorAssignmentSubmissionsRoute", Path: "/instructor/units/{unitId}/lessons/{lessonId}/sections/{sectionId}/assignment-submissions", Methods: methods(models.MethodGet), Function: InstructorPortal, Protected: true},
		{ID: "AuthLoginRoute", Path: "/auth/login", Methods: methods(models.MethodPost), Function: Auth},
		{ID: "AuthRefreshRoute", Path: "/auth/refresh", Methods: methods(models.MethodPost), Function: Auth},
		{ID: "AuthLogoutRoute", Path: "/auth/logout", Methods: methods(models.MethodPost), Function: Auth},
	}
}

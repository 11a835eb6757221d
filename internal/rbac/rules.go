package rbac

const (
	PermCourseLearn     = "course:learn"
	PermBypassDrip      = "content:bypass-drip"
	PermTheoryReview    = "theory:review"
	PermTheorySubmit    = "theory:submit"
	PermMCQSubmit       = "mcq:submit"
	PermCodingRun       = "coding:run"
	PermLessonComplete  = "progress:complete"
	PermSubmissionsRead = "submission:view-all"
	PermJournalRead     = "journal:read"
)

// RolePermissions maps backend roles to gateway permissions. Roles arrive
// upper-cased from the backend token.
var RolePermissions = map[string][]string{
	"STUDENT": {
		PermCourseLearn,
		PermLessonComplete,
		PermCodingRun,
		PermMCQSubmit,
		PermTheorySubmit,
	},
	"TEACHER": {
		PermCourseLearn,
		PermBypassDrip,
		PermCodingRun,
		PermTheoryReview,
		PermSubmissionsRead,
	},
	"ADMIN": {
		"*",
	},
}

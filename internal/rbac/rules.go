package rbac

// RolePermissions is the default policy for the five account roles.
var RolePermissions = map[string][]string{
	"student": {
		"profile:view-own",
		"eligibility:view-own",
		"grants:apply",
		"grants:view-own",
		"assignments:view",
		"submissions:create",
		"submissions:view-own",
		"sessions:start",
		"subjects:list",
	},
	"teacher": {
		"grades:enter",
		"attendance:enter",
		"submissions:review",
		"eligibility:view-all",
		"subjects:list",
		"students:list",
		"assignments:view",
		"assignments:create",
		"teacher:stats",
	},
	"student_affairs": {
		"students:*",
		"teachers:list",
		"grades:enter",
		"attendance:enter",
		"eligibility:view-all",
		"subjects:list",
		"enrollments:create",
		"stats:student-affairs",
		"events:read",
	},
	"academic_affairs": {
		"teachers:*",
		"students:list",
		"subjects:*",
		"enrollments:create",
		"teacher-assignments:create",
		"assignments:create",
		"eligibility:view-all",
		"stats:academic-affairs",
		"events:read",
	},
	"grant_committee": {
		"grants:review",
		"grants:list",
		"grants:stats",
		"eligibility:view-all",
		"students:list",
	},
}

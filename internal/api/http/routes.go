package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	authmw "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/coursework"
	"github.com/pdp-edu/unimonitor/internal/grants"
	"github.com/pdp-edu/unimonitor/internal/rbac"
	"github.com/pdp-edu/unimonitor/internal/records"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

type Deps struct {
	Auth               *authmw.AuthService
	Records            records.Store
	Grants             *grants.Service
	Coursework         *coursework.Service
	Events             *syncx.EventRepo
	Roles              *cache.Cache
	AllowClaimFallback bool
}

// MountProtected registers every authenticated route on r. Callers put
// JWTMiddleware and AttachRoleFromDB in front (see MountAPI).
func MountProtected(r chi.Router, d Deps) {
	st := d.Records

	// ownStudent holds when {studentID} is the caller's own student profile.
	ownStudent := func(r *http.Request) bool {
		me, err := st.GetStudentByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
		return err == nil && me.ID == chi.URLParam(r, "studentID")
	}

	r.Get("/auth/user", authmw.CurrentUserHandler(st))

	r.Route("/students", func(sr chi.Router) {
		sr.With(rbac.Require("students:create")).Post("/", CreateStudentHandler(st))
		sr.With(rbac.Require("students:list")).Get("/", ListStudentsHandler(st))
		sr.With(rbac.Require("profile:view-own")).Get("/me", MyStudentHandler(st))
		sr.With(rbac.RequireOwnerOr("students:list", ownStudent)).Get("/{studentID}", GetStudentHandler(st))
		sr.With(rbac.Require("students:update")).Patch("/{studentID}", UpdateStudentHandler(st))
		sr.With(rbac.Require("students:list")).Get("/{studentID}/enrollments", ListEnrollmentsHandler(st))
		sr.With(rbac.RequireOwnerOr("eligibility:view-all", ownStudent)).Get("/{studentID}/eligibility", StudentEligibilityHandler(d.Grants))
		sr.With(rbac.RequireOwnerOr("grants:list", ownStudent)).Get("/{studentID}/grants", StudentApplicationsHandler(d.Grants))
	})

	r.With(rbac.Require("teachers:create")).Post("/teachers", CreateTeacherHandler(st))
	r.With(rbac.Require("teachers:list")).Get("/teachers", ListTeachersHandler(st))
	r.With(rbac.Require("teacher:stats")).Get("/teachers/stats", TeacherStatsHandler(st, d.Coursework))
	r.With(rbac.Require("teacher:stats")).Get("/teachers/me/assignments", MyTeacherAssignmentsHandler(st))

	r.With(rbac.Require("subjects:create")).Post("/subjects", CreateSubjectHandler(st))
	r.With(rbac.Require("subjects:list")).Get("/subjects", ListSubjectsHandler(st))
	r.With(rbac.Require("enrollments:create")).Post("/enrollments", CreateEnrollmentHandler(st))
	r.With(rbac.Require("teacher-assignments:create")).Post("/teacher-assignments", CreateTeacherAssignmentHandler(st))

	marks := rbac.RequireAny("grades:enter", "attendance:enter", "students:list")
	r.With(rbac.Require("grades:enter")).Post("/grades", CreateGradeHandler(st, d.Events))
	r.With(rbac.Require("attendance:enter")).Post("/attendance", RecordAttendanceHandler(st, d.Events))
	r.With(marks).Get("/enrollments/{enrollmentID}/grades", ListGradesHandler(st))
	r.With(marks).Get("/enrollments/{enrollmentID}/attendance", ListAttendanceHandler(st))

	r.Route("/grants", func(gr chi.Router) {
		gr.With(rbac.Require("eligibility:view-own")).Get("/eligibility", MyEligibilityHandler(st, d.Grants))
		gr.With(rbac.Require("grants:apply")).Post("/applications", ApplyGrantHandler(st, d.Grants))
		gr.With(rbac.Require("grants:view-own")).Get("/applications/mine", MyApplicationsHandler(st, d.Grants))
		gr.With(rbac.Require("grants:list")).Get("/pending", PendingGrantsHandler(d.Grants))
		gr.With(rbac.Require("grants:list")).Get("/applications/{applicationID}", GetApplicationHandler(d.Grants))
		gr.With(rbac.Require("grants:list")).Get("/applications/{applicationID}/document", ApplicationDocumentHandler(d.Grants))
		gr.With(rbac.Require("grants:review")).Post("/applications/{applicationID}/review", ReviewGrantHandler(d.Grants))
		gr.With(rbac.Require("grants:stats")).Get("/committee/stats", CommitteeStatsHandler(d.Grants))
	})

	r.Route("/assignments", func(ar chi.Router) {
		ar.With(rbac.Require("assignments:view")).Get("/", MyAssignmentsHandler(st, d.Coursework))
		ar.With(rbac.Require("assignments:view")).Get("/current", CurrentAssignmentHandler(st, d.Coursework))
		ar.With(rbac.Require("assignments:view")).Get("/upcoming", UpcomingAssignmentsHandler(st, d.Coursework))
		ar.With(rbac.Require("assignments:create")).Post("/", CreateAssignmentHandler(d.Coursework))
	})

	r.With(rbac.Require("sessions:start")).Get("/coding-sessions", MySessionsHandler(st, d.Coursework))
	r.With(rbac.Require("sessions:start")).Post("/coding-sessions/start", StartSessionHandler(st, d.Coursework))
	r.With(rbac.Require("sessions:start")).Post("/coding-sessions/{sessionID}/end", EndSessionHandler(st, d.Coursework))

	r.Route("/submissions", func(sr chi.Router) {
		sr.With(rbac.Require("submissions:create")).Post("/", SubmitCodeHandler(st, d.Coursework))
		sr.With(rbac.Require("submissions:view-own")).Get("/history", SubmissionHistoryHandler(st, d.Coursework))
		sr.With(rbac.Require("submissions:review")).Get("/recent", RecentSubmissionsHandler(d.Coursework))
		sr.With(rbac.RequireAny("submissions:view-own", "submissions:review")).Get("/{submissionID}", GetSubmissionHandler(st, d.Coursework))
		sr.With(rbac.Require("submissions:review")).Post("/{submissionID}/review", ReviewSubmissionHandler(d.Coursework))
	})

	r.With(rbac.Require("stats:student-affairs")).Get("/student-affairs/stats", StudentAffairsStatsHandler(st))
	r.With(rbac.Require("stats:academic-affairs")).Get("/academic-affairs/stats", AcademicAffairsStatsHandler(st))
	r.With(rbac.Require("events:read")).Get("/events", EventsHandler(d.Events))
}

// MountAPI adds bearer-token auth and stored-role lookup in front of the protected routes.
func MountAPI(r chi.Router, d Deps) {
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		pr.Use(authmw.AttachRoleFromDB(d.Records, d.Roles, d.AllowClaimFallback))
		MountProtected(pr, d)
	})
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/coursework"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/rbac"
	"github.com/pdp-edu/unimonitor/internal/records"
)

// GET /assignments
func MyAssignmentsHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		list, err := svc.Assignments(r.Context(), s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /assignments/upcoming
func UpcomingAssignmentsHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		list, err := svc.Upcoming(r.Context(), s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /assignments/current responds with null when nothing is left.
func CurrentAssignmentHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		a, err := svc.Current(r.Context(), s)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

type createAssignmentRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=20000"`
	Direction   records.Direction `json:"direction" validate:"required,oneof=frontend backend mobile ai_ml devops"`
	Year        int               `json:"year" validate:"required,min=1,max=4"`
	OrderIndex  int               `json:"orderIndex" validate:"min=0"`
	DueDate     *int64            `json:"dueDate" validate:"omitempty,min=0"`
}

// POST /assignments
func CreateAssignmentHandler(svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAssignmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		a, err := svc.CreateAssignment(r.Context(), coursework.Assignment{
			Title: req.Title, Description: req.Description, Direction: req.Direction, Year: req.Year,
			OrderIndex: req.OrderIndex, DueDate: req.DueDate, CreatedBy: authmw.SubjectFromContext(r.Context()),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

type startSessionRequest struct {
	AssignmentID string `json:"assignmentId"`
}

// POST /coding-sessions/start
func StartSessionHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		var req startSessionRequest
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		se, err := svc.StartSession(r.Context(), s.ID, req.AssignmentID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, se)
	}
}

// POST /coding-sessions/{sessionID}/end
func EndSessionHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		se, err := svc.EndSession(r.Context(), s.ID, chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, se)
	}
}

// GET /coding-sessions
func MySessionsHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		list, err := svc.Sessions(r.Context(), s.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// Escaped JSON can be several times the size of the code it carries.
const maxSubmitBody = 8 << 20

type submitRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required"`
	Code         string `json:"code" validate:"required"`
	SessionID    string `json:"sessionId"`
}

// POST /submissions
func SubmitCodeHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		var req submitRequest
		if !decodeJSONLimit(w, r, &req, maxSubmitBody) {
			return
		}
		sub, err := svc.Submit(r.Context(), coursework.SubmitInput{
			Student: s, AssignmentID: req.AssignmentID, Code: req.Code, SessionID: req.SessionID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

// GET /submissions/history
func SubmissionHistoryHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		list, err := svc.History(r.Context(), s.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /submissions/recent
func RecentSubmissionsHandler(svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Recent(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /submissions/{submissionID}
//
// Reviewers see any submission; students only their own.
func GetSubmissionHandler(st records.Store, svc *coursework.Service) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.Get(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !checker.Has(rbac.RoleFromContext(r.Context()), "submissions:review") {
			s, ok := currentStudent(w, r, st)
			if !ok {
				return
			}
			if s.ID != sub.StudentID {
				writeMessage(w, http.StatusNotFound, "not found")
				return
			}
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

type reviewSubmissionRequest struct {
	Grade    eligibility.Grade `json:"grade" validate:"required,oneof=excellent good pass retake"`
	Feedback string            `json:"feedback" validate:"max=10000"`
}

// POST /submissions/{submissionID}/review
func ReviewSubmissionHandler(svc *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewSubmissionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sub, err := svc.Review(r.Context(), chi.URLParam(r, "submissionID"),
			authmw.SubjectFromContext(r.Context()), req.Grade, req.Feedback)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

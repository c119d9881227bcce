package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/grants"
	"github.com/pdp-edu/unimonitor/internal/records"
)

const (
	maxDocumentBytes = 10 << 20
	// room for the other form fields and multipart framing
	maxApplyBody = maxDocumentBytes + 64<<10
)

// GET /grants/eligibility
func MyEligibilityHandler(st records.Store, svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		res, err := svc.Eligibility(r.Context(), s.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /students/{studentID}/eligibility
func StudentEligibilityHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Eligibility(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type applyRequest struct {
	GrantType          string `json:"grantType" validate:"required,oneof=golden_minds unicorn"`
	AcademicYear       string `json:"academicYear" validate:"omitempty,len=7"`
	MotivationalLetter string `json:"motivationalLetter" validate:"max=10000"`
}

// POST /grants/applications
//
// Accepts JSON, or multipart/form-data with the same fields plus an optional
// "internshipDocument" file.
func ApplyGrantHandler(st records.Store, svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		in := grants.ApplyInput{StudentID: s.ID}
		var req applyRequest

		if r.ContentLength > maxApplyBody {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxApplyBody)

		if err := r.ParseMultipartForm(maxDocumentBytes); err == nil {
			req.GrantType = r.FormValue("grantType")
			req.AcademicYear = r.FormValue("academicYear")
			req.MotivationalLetter = r.FormValue("motivationalLetter")
			if !validBody(w, &req) {
				return
			}
			f, hdr, err := r.FormFile("internshipDocument")
			switch {
			case err == nil:
				defer f.Close()
				in.Document, in.DocumentName = f, hdr.Filename
			case !errors.Is(err, http.ErrMissingFile):
				writeMessage(w, http.StatusBadRequest, "bad internship document")
				return
			}
		} else if errors.Is(err, http.ErrNotMultipart) {
			if !decodeJSON(w, r, &req) {
				return
			}
		} else if tooLarge(err) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		} else {
			writeMessage(w, http.StatusBadRequest, "bad multipart form")
			return
		}

		in.GrantType, in.AcademicYear, in.MotivationalLetter = req.GrantType, req.AcademicYear, req.MotivationalLetter
		app, err := svc.Apply(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	}
}

// GET /grants/applications/mine
func MyApplicationsHandler(st records.Store, svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		list, err := svc.ListForStudent(r.Context(), s.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /students/{studentID}/grants
func StudentApplicationsHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListForStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /grants/pending
func PendingGrantsHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Pending(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /grants/applications/{applicationID}
func GetApplicationHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := svc.Get(r.Context(), chi.URLParam(r, "applicationID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

// GET /grants/applications/{applicationID}/document
func ApplicationDocumentHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := svc.Document(r.Context(), chi.URLParam(r, "applicationID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}

type reviewGrantRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Notes    string `json:"notes" validate:"max=5000"`
}

// POST /grants/applications/{applicationID}/review
func ReviewGrantHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewGrantRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		app, err := svc.Review(r.Context(), chi.URLParam(r, "applicationID"),
			authmw.SubjectFromContext(r.Context()), req.Decision == "approve", req.Notes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

// GET /grants/committee/stats
func CommitteeStatsHandler(svc *grants.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.CommitteeStats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

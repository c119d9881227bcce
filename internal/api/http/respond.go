package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	authmw "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/grants"
	"github.com/pdp-edu/unimonitor/internal/records"
	"github.com/pdp-edu/unimonitor/internal/storage"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Message: msg})
}

// writeError maps domain errors to status codes. Unknown errors are logged
// and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, eligibility.ErrInvalidInput), errors.Is(err, grants.ErrNotEligible):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, records.ErrInvalidInput), errors.Is(err, storage.ErrBadKey):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, records.ErrConflict), errors.Is(err, grants.ErrInvalidState):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads and validates the request body into dst. On failure it
// writes a 400 (413 for oversized bodies) and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeJSONLimit(w, r, dst, maxJSONBody)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(dst); err != nil {
		if tooLarge(err) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "bad json")
		return false
	}
	return validBody(w, dst)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func validBody(w http.ResponseWriter, dst any) bool {
	err := validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid input data", Fields: fields})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

// currentStudent resolves the student profile of the authenticated user.
func currentStudent(w http.ResponseWriter, r *http.Request, st records.Store) (records.Student, bool) {
	s, err := st.GetStudentByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
	if errors.Is(err, records.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "student profile not found")
		return records.Student{}, false
	}
	if err != nil {
		writeError(w, r, err)
		return records.Student{}, false
	}
	return s, true
}

func currentTeacher(w http.ResponseWriter, r *http.Request, st records.Store) (records.Teacher, bool) {
	t, err := st.GetTeacherByUserID(r.Context(), authmw.SubjectFromContext(r.Context()))
	if errors.Is(err, records.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "teacher profile not found")
		return records.Teacher{}, false
	}
	if err != nil {
		writeError(w, r, err)
		return records.Teacher{}, false
	}
	return t, true
}

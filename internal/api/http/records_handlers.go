package http

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/records"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

// EventRecorder appends an entry to the event log.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

type createStudentRequest struct {
	Username  string            `json:"username" validate:"required,min=3,max=64"`
	Password  string            `json:"password" validate:"required,min=6,max=128"`
	Email     string            `json:"email" validate:"omitempty,email"`
	FirstName string            `json:"firstName" validate:"max=100"`
	LastName  string            `json:"lastName" validate:"max=100"`
	StudentID string            `json:"studentId" validate:"required,max=32"`
	Year      int               `json:"year" validate:"required,min=1,max=4"`
	Direction records.Direction `json:"direction" validate:"required,oneof=frontend backend mobile ai_ml devops"`
	GPA       *float64          `json:"gpa" validate:"omitempty,min=0,max=5"`
}

// POST /students
func CreateStudentHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createStudentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		u, s, err := st.CreateStudent(r.Context(), records.NewStudent{
			Username: req.Username, Password: req.Password, Email: req.Email,
			FirstName: req.FirstName, LastName: req.LastName,
			StudentNumber: req.StudentID, Year: req.Year, Direction: req.Direction, GPA: req.GPA,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": u, "student": s})
	}
}

// GET /students?year=&direction=&limit=&offset=
func ListStudentsHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := records.StudentFilter{Direction: records.Direction(q.Get("direction"))}
		f.Year, _ = strconv.Atoi(q.Get("year"))
		f.Limit, _ = strconv.Atoi(q.Get("limit"))
		f.Offset, _ = strconv.Atoi(q.Get("offset"))
		list, err := st.ListStudents(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /students/me
func MyStudentHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := currentStudent(w, r, st)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// GET /students/{studentID}
func GetStudentHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := st.GetStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type updateStudentRequest struct {
	Year                 *int               `json:"year" validate:"omitempty,min=1,max=4"`
	Direction            *records.Direction `json:"direction" validate:"omitempty,oneof=frontend backend mobile ai_ml devops"`
	GPA                  *float64           `json:"gpa" validate:"omitempty,min=0,max=5"`
	AttendancePercentage *float64           `json:"attendancePercentage" validate:"omitempty,min=0,max=100"`
}

// PATCH /students/{studentID}
func UpdateStudentHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateStudentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := st.UpdateStudent(r.Context(), chi.URLParam(r, "studentID"), records.StudentPatch(req))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type createTeacherRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	Password   string `json:"password" validate:"required,min=6,max=128"`
	Email      string `json:"email" validate:"omitempty,email"`
	FirstName  string `json:"firstName" validate:"max=100"`
	LastName   string `json:"lastName" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
}

// POST /teachers
func CreateTeacherHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTeacherRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		u, t, err := st.CreateTeacher(r.Context(), records.NewTeacher(req))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": u, "teacher": t})
	}
}

// GET /teachers
func ListTeachersHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := st.ListTeachers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type createSubjectRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Code    string `json:"code" validate:"required,max=32"`
	Year    int    `json:"year" validate:"required,min=1,max=4"`
	Credits int    `json:"credits" validate:"min=0,max=60"`
}

// POST /subjects
func CreateSubjectHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSubjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := st.CreateSubject(r.Context(), records.Subject{Name: req.Name, Code: req.Code, Year: req.Year, Credits: req.Credits})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

// GET /subjects
func ListSubjectsHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := st.ListSubjects(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type enrollmentRequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	SubjectID    string `json:"subjectId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"omitempty,len=7"`
}

// POST /enrollments
func CreateEnrollmentHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrollmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		e, err := st.CreateEnrollment(r.Context(), records.Enrollment{StudentID: req.StudentID, SubjectID: req.SubjectID, AcademicYear: req.AcademicYear})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /students/{studentID}/enrollments
func ListEnrollmentsHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := st.ListEnrollments(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type teacherAssignmentRequest struct {
	TeacherID    string `json:"teacherId" validate:"required"`
	SubjectID    string `json:"subjectId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"omitempty,len=7"`
}

// POST /teacher-assignments
func CreateTeacherAssignmentHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req teacherAssignmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		a, err := st.CreateTeacherAssignment(r.Context(), records.TeacherAssignment{
			TeacherID: req.TeacherID, SubjectID: req.SubjectID, AcademicYear: req.AcademicYear,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /teachers/me/assignments
func MyTeacherAssignmentsHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := currentTeacher(w, r, st)
		if !ok {
			return
		}
		list, err := st.ListTeacherAssignments(r.Context(), t.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type gradeRequest struct {
	EnrollmentID string            `json:"enrollmentId" validate:"required"`
	Grade        eligibility.Grade `json:"grade" validate:"required,oneof=excellent good pass retake"`
}

// POST /grades
func CreateGradeHandler(st records.Store, events EventRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		g, err := st.CreateGrade(r.Context(), records.GradeEntry{
			EnrollmentID: req.EnrollmentID, Grade: req.Grade, EnteredBy: authmw.SubjectFromContext(r.Context()),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		recordEvent(r, events, syncx.TypeGradeEntered, g.ID, g)
		writeJSON(w, http.StatusCreated, g)
	}
}

// GET /enrollments/{enrollmentID}/grades
func ListGradesHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := st.ListGrades(r.Context(), chi.URLParam(r, "enrollmentID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type attendanceRequest struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	Date         int64  `json:"date" validate:"min=0"`
	Present      bool   `json:"present"`
}

// POST /attendance
func RecordAttendanceHandler(st records.Store, events EventRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req attendanceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		a, err := st.RecordAttendance(r.Context(), records.AttendanceEntry{
			EnrollmentID: req.EnrollmentID, Date: req.Date, Present: req.Present,
			EnteredBy: authmw.SubjectFromContext(r.Context()),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		recordEvent(r, events, syncx.TypeAttendanceRecorded, a.ID, a)
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /enrollments/{enrollmentID}/attendance
func ListAttendanceHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := st.ListAttendance(r.Context(), chi.URLParam(r, "enrollmentID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func recordEvent(r *http.Request, events EventRecorder, typ, key string, payload any) {
	if events == nil {
		return
	}
	if err := events.Record(r.Context(), typ, key, payload); err != nil {
		log.Printf("%s %s: event %s %s: %v", r.Method, r.URL.Path, typ, key, err)
	}
}

package http

import (
	"math"
	"net/http"

	"github.com/pdp-edu/unimonitor/internal/coursework"
	"github.com/pdp-edu/unimonitor/internal/records"
)

func round2(v float64) float64 { return math.RoundToEven(v*100) / 100 }

// GET /student-affairs/stats
func StudentAffairsStatsHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := st.Overview(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"activeStudents": o.Students,
			"facultyCount":   o.Teachers,
			"avgAttendance":  round2(o.AvgAttendance),
			"totalSubjects":  o.Subjects,
		})
	}
}

// GET /academic-affairs/stats
func AcademicAffairsStatsHandler(st records.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := st.Overview(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		faculty := o.Teachers
		if faculty == 0 {
			faculty = 1
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"totalEnrollment": o.Students,
			"activePrograms":  o.DirectionCount,
			"avgGPA":          round2(o.AvgGPA),
			"facultyRatio":    round2(float64(o.Students) / float64(faculty)),
		})
	}
}

// GET /teachers/stats
func TeacherStatsHandler(st records.Store, cw *coursework.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := currentTeacher(w, r, st)
		if !ok {
			return
		}
		o, err := st.TeacherOverview(r.Context(), t.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		pending, err := cw.PendingReviews(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"totalStudents":  o.Students,
			"activeSubjects": o.ActiveSubjects,
			"pendingReviews": pending,
		})
	}
}

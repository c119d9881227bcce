package eligibility

// Grade is the minimal view of a grade entry the evaluator needs.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradePass      Grade = "pass"
	GradeRetake    Grade = "retake"
)

type EnrollmentGrades struct {
	EnrollmentID string
	Grades       []Grade
}

// AcademicRecord is a consistent snapshot of one student as read by the
// record provider.
type AcademicRecord struct {
	StudentID            string
	Year                 int
	AttendancePercentage float64
	Enrollments          []EnrollmentGrades
}

type Counters struct {
	Retakes int
	Passes  int
}

// Aggregate visits every grade of every enrollment exactly once.
func Aggregate(enrollments []EnrollmentGrades) Counters {
	var c Counters
	for _, e := range enrollments {
		for _, g := range e.Grades {
			switch g {
			case GradeRetake:
				c.Retakes++
			case GradePass:
				c.Passes++
			}
		}
	}
	return c
}

// Input builds the evaluator input from a snapshot.
func (r AcademicRecord) Input() Input {
	c := Aggregate(r.Enrollments)
	return Input{
		Year:                 r.Year,
		AttendancePercentage: r.AttendancePercentage,
		RetakeCount:          c.Retakes,
		PassCount:            c.Passes,
	}
}

func (e *Evaluator) EvaluateRecord(r AcademicRecord) (Result, error) {
	return e.Evaluate(r.Input())
}

func EvaluateRecord(r AcademicRecord) (Result, error) { return defaultEvaluator.EvaluateRecord(r) }

package records

import (
	"context"

	"github.com/pdp-edu/unimonitor/internal/eligibility"
)

// Store is the record provider for the monitoring platform.
type Store interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error) // includes password hash
	// EnsureUser inserts u (with a plaintext password) unless the username
	// exists; created reports whether a row was written.
	EnsureUser(ctx context.Context, u User, password string) (out User, created bool, err error)

	CreateStudent(ctx context.Context, in NewStudent) (User, Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	GetStudentByUserID(ctx context.Context, userID string) (Student, error)
	ListStudents(ctx context.Context, f StudentFilter) ([]Student, error)
	UpdateStudent(ctx context.Context, id string, p StudentPatch) (Student, error)

	CreateTeacher(ctx context.Context, in NewTeacher) (User, Teacher, error)
	GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error)
	ListTeachers(ctx context.Context) ([]Teacher, error)

	CreateSubject(ctx context.Context, s Subject) (Subject, error)
	ListSubjects(ctx context.Context) ([]Subject, error)

	CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	ListEnrollments(ctx context.Context, studentID string) ([]Enrollment, error)
	CreateTeacherAssignment(ctx context.Context, a TeacherAssignment) (TeacherAssignment, error)
	ListTeacherAssignments(ctx context.Context, teacherID string) ([]TeacherAssignment, error)

	CreateGrade(ctx context.Context, g GradeEntry) (GradeEntry, error)
	ListGrades(ctx context.Context, enrollmentID string) ([]GradeEntry, error)

	// RecordAttendance stores the entry and refreshes the owning student's
	// attendance percentage in the same transaction.
	RecordAttendance(ctx context.Context, a AttendanceEntry) (AttendanceEntry, error)
	ListAttendance(ctx context.Context, enrollmentID string) ([]AttendanceEntry, error)
	AttendancePercentage(ctx context.Context, studentID string) (float64, error)

	// Snapshot reads the student, enrollments and grades in one read
	// transaction. Returns ErrNotFound if the student does not exist.
	Snapshot(ctx context.Context, studentID string) (eligibility.AcademicRecord, error)

	Overview(ctx context.Context) (Overview, error)
	TeacherOverview(ctx context.Context, teacherID string) (TeacherOverview, error)
}

package records

import (
	"errors"
	"fmt"
	"time"

	"github.com/pdp-edu/unimonitor/internal/eligibility"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrInvalidInput = errors.New("invalid input")
)

type Role string

const (
	RoleAcademicAffairs Role = "academic_affairs"
	RoleStudentAffairs  Role = "student_affairs"
	RoleTeacher         Role = "teacher"
	RoleStudent         Role = "student"
	RoleGrantCommittee  Role = "grant_committee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAcademicAffairs, RoleStudentAffairs, RoleTeacher, RoleStudent, RoleGrantCommittee:
		return true
	}
	return false
}

type Direction string

const (
	DirectionFrontend Direction = "frontend"
	DirectionBackend  Direction = "backend"
	DirectionMobile   Direction = "mobile"
	DirectionAIML     Direction = "ai_ml"
	DirectionDevOps   Direction = "devops"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionFrontend, DirectionBackend, DirectionMobile, DirectionAIML, DirectionDevOps:
		return true
	}
	return false
}

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Email        string `json:"email,omitempty"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Role         Role   `json:"role"`
	CreatedAt    int64  `json:"createdAt"`
}

type Student struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	StudentNumber        string    `json:"studentId"`
	Year                 int       `json:"year"`
	Direction            Direction `json:"direction"`
	GPA                  *float64  `json:"gpa"`
	AttendancePercentage float64   `json:"attendancePercentage"`
	TotalCodingHours     float64   `json:"totalCodingHours"`
	CreatedAt            int64     `json:"createdAt"`

	// joined from users
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// NewStudent creates the login account and the student profile together.
type NewStudent struct {
	Username      string
	Password      string
	Email         string
	FirstName     string
	LastName      string
	StudentNumber string
	Year          int
	Direction     Direction
	GPA           *float64
}

type StudentPatch struct {
	Year                 *int
	Direction            *Direction
	GPA                  *float64
	AttendancePercentage *float64
}

type StudentFilter struct {
	Year      int
	Direction Direction
	Limit     int
	Offset    int
}

type Teacher struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Department string `json:"department,omitempty"`
	CreatedAt  int64  `json:"createdAt"`

	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type NewTeacher struct {
	Username   string
	Password   string
	Email      string
	FirstName  string
	LastName   string
	Department string
}

type Subject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Year      int    `json:"year"`
	Credits   int    `json:"credits"`
	CreatedAt int64  `json:"createdAt"`
}

type Enrollment struct {
	ID           string `json:"id"`
	StudentID    string `json:"studentId"`
	SubjectID    string `json:"subjectId"`
	AcademicYear string `json:"academicYear"`
	CreatedAt    int64  `json:"createdAt"`
}

type TeacherAssignment struct {
	ID           string `json:"id"`
	TeacherID    string `json:"teacherId"`
	SubjectID    string `json:"subjectId"`
	AcademicYear string `json:"academicYear"`
	CreatedAt    int64  `json:"createdAt"`
}

type GradeEntry struct {
	ID           string            `json:"id"`
	EnrollmentID string            `json:"enrollmentId"`
	Grade        eligibility.Grade `json:"grade"`
	EnteredBy    string            `json:"enteredBy"`
	CreatedAt    int64             `json:"createdAt"`
}

func ValidGrade(g eligibility.Grade) bool {
	switch g {
	case eligibility.GradeExcellent, eligibility.GradeGood, eligibility.GradePass, eligibility.GradeRetake:
		return true
	}
	return false
}

type AttendanceEntry struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollmentId"`
	Date         int64  `json:"date"`
	Present      bool   `json:"present"`
	EnteredBy    string `json:"enteredBy"`
	CreatedAt    int64  `json:"createdAt"`
}

// Overview backs the affairs dashboards.
type Overview struct {
	Students       int     `json:"students"`
	Teachers       int     `json:"teachers"`
	Subjects       int     `json:"subjects"`
	Enrollments    int     `json:"enrollments"`
	AvgAttendance  float64 `json:"avgAttendance"`
	AvgGPA         float64 `json:"avgGpa"`
	DirectionCount int     `json:"directions"`
}

type TeacherOverview struct {
	Students       int `json:"students"`
	ActiveSubjects int `json:"activeSubjects"`
}

// CurrentAcademicYear returns e.g. "2024-25" for any date from September
// 2024 through August 2025.
func CurrentAcademicYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.September {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pdp-edu/unimonitor/internal/eligibility"
)

// ---- subjects ----

func (s *SQLStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	if sub.Name == "" || sub.Code == "" || !validYear(sub.Year) || sub.Credits <= 0 {
		return Subject{}, fmt.Errorf("%w: subject needs name, code, year 1..4 and positive credits", ErrInvalidInput)
	}
	sub.ID = newID()
	sub.CreatedAt = time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (id, name, code, year, credits, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		sub.ID, sub.Name, sub.Code, sub.Year, sub.Credits, sub.CreatedAt)
	if isUniqueViolation(err) {
		return Subject{}, fmt.Errorf("%w: subject code %s", ErrConflict, sub.Code)
	}
	if err != nil {
		return Subject{}, err
	}
	return sub, nil
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code, year, credits, created_at FROM subjects ORDER BY year, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Code, &sub.Year, &sub.Credits, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ---- enrollments ----

func exists(ctx context.Context, q queryer, query, id, what string) error {
	var one int
	err := q.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	if e.StudentID == "" || e.SubjectID == "" {
		return Enrollment{}, fmt.Errorf("%w: studentId and subjectId required", ErrInvalidInput)
	}
	if e.AcademicYear == "" {
		e.AcademicYear = CurrentAcademicYear(time.Now())
	}
	e.ID = newID()
	e.CreatedAt = time.Now().Unix()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, `SELECT 1 FROM students WHERE id=$1`, e.StudentID, "student"); err != nil {
			return err
		}
		if err := exists(ctx, tx, `SELECT 1 FROM subjects WHERE id=$1`, e.SubjectID, "subject"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO enrollments (id, student_id, subject_id, academic_year, created_at) VALUES ($1,$2,$3,$4,$5)`,
			e.ID, e.StudentID, e.SubjectID, e.AcademicYear, e.CreatedAt)
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (s *SQLStore) ListEnrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, subject_id, academic_year, created_at FROM enrollments WHERE student_id=$1 ORDER BY created_at, id`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		var e Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.SubjectID, &e.AcademicYear, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateTeacherAssignment(ctx context.Context, a TeacherAssignment) (TeacherAssignment, error) {
	if a.TeacherID == "" || a.SubjectID == "" {
		return TeacherAssignment{}, fmt.Errorf("%w: teacherId and subjectId required", ErrInvalidInput)
	}
	if a.AcademicYear == "" {
		a.AcademicYear = CurrentAcademicYear(time.Now())
	}
	a.ID = newID()
	a.CreatedAt = time.Now().Unix()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, `SELECT 1 FROM teachers WHERE id=$1`, a.TeacherID, "teacher"); err != nil {
			return err
		}
		if err := exists(ctx, tx, `SELECT 1 FROM subjects WHERE id=$1`, a.SubjectID, "subject"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO teacher_assignments (id, teacher_id, subject_id, academic_year, created_at) VALUES ($1,$2,$3,$4,$5)`,
			a.ID, a.TeacherID, a.SubjectID, a.AcademicYear, a.CreatedAt)
		return err
	})
	if err != nil {
		return TeacherAssignment{}, err
	}
	return a, nil
}

func (s *SQLStore) ListTeacherAssignments(ctx context.Context, teacherID string) ([]TeacherAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, teacher_id, subject_id, academic_year, created_at FROM teacher_assignments WHERE teacher_id=$1 ORDER BY created_at, id`,
		teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TeacherAssignment{}
	for rows.Next() {
		var a TeacherAssignment
		if err := rows.Scan(&a.ID, &a.TeacherID, &a.SubjectID, &a.AcademicYear, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- grades ----

func (s *SQLStore) CreateGrade(ctx context.Context, g GradeEntry) (GradeEntry, error) {
	if !ValidGrade(g.Grade) {
		return GradeEntry{}, fmt.Errorf("%w: grade %q", ErrInvalidInput, g.Grade)
	}
	if g.EnrollmentID == "" || g.EnteredBy == "" {
		return GradeEntry{}, fmt.Errorf("%w: enrollmentId and enteredBy required", ErrInvalidInput)
	}
	g.ID = newID()
	g.CreatedAt = time.Now().Unix()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := exists(ctx, tx, `SELECT 1 FROM enrollments WHERE id=$1`, g.EnrollmentID, "enrollment"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO grades (id, enrollment_id, grade, entered_by, created_at) VALUES ($1,$2,$3,$4,$5)`,
			g.ID, g.EnrollmentID, string(g.Grade), g.EnteredBy, g.CreatedAt)
		return err
	})
	if err != nil {
		return GradeEntry{}, err
	}
	return g, nil
}

func (s *SQLStore) ListGrades(ctx context.Context, enrollmentID string) ([]GradeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, enrollment_id, grade, entered_by, created_at FROM grades WHERE enrollment_id=$1 ORDER BY created_at, id`,
		enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GradeEntry{}
	for rows.Next() {
		var g GradeEntry
		var grade string
		if err := rows.Scan(&g.ID, &g.EnrollmentID, &grade, &g.EnteredBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.Grade = eligibility.Grade(grade)
		out = append(out, g)
	}
	return out, rows.Err()
}

// ---- attendance ----

func (s *SQLStore) RecordAttendance(ctx context.Context, a AttendanceEntry) (AttendanceEntry, error) {
	if a.EnrollmentID == "" || a.EnteredBy == "" {
		return AttendanceEntry{}, fmt.Errorf("%w: enrollmentId and enteredBy required", ErrInvalidInput)
	}
	now := time.Now().Unix()
	if a.Date == 0 {
		a.Date = now
	}
	a.ID = newID()
	a.CreatedAt = now
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var studentID string
		err := tx.QueryRowContext(ctx, `SELECT student_id FROM enrollments WHERE id=$1`, a.EnrollmentID).Scan(&studentID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("enrollment %s: %w", a.EnrollmentID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance (id, enrollment_id, date, present, entered_by, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			a.ID, a.EnrollmentID, a.Date, a.Present, a.EnteredBy, a.CreatedAt); err != nil {
			return err
		}
		pct, err := attendancePercentage(ctx, tx, studentID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE students SET attendance_percentage=$1 WHERE id=$2`, pct, studentID)
		return err
	})
	if err != nil {
		return AttendanceEntry{}, err
	}
	return a, nil
}

// attendancePercentage is present/total over every attendance row of the
// student, rounded to two decimals; 0 when nothing was recorded.
func attendancePercentage(ctx context.Context, q queryer, studentID string) (float64, error) {
	var total, present int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN a.present THEN 1 ELSE 0 END), 0)
		   FROM attendance a JOIN enrollments e ON e.id = a.enrollment_id
		  WHERE e.student_id=$1`, studentID).Scan(&total, &present)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return math.Round(float64(present)*10000/float64(total)) / 100, nil
}

func (s *SQLStore) AttendancePercentage(ctx context.Context, studentID string) (float64, error) {
	var pct sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT attendance_percentage FROM students WHERE id=$1`, studentID).Scan(&pct)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return pct.Float64, nil
}

func (s *SQLStore) ListAttendance(ctx context.Context, enrollmentID string) ([]AttendanceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, enrollment_id, date, present, entered_by, created_at FROM attendance WHERE enrollment_id=$1 ORDER BY date, id`,
		enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AttendanceEntry{}
	for rows.Next() {
		var a AttendanceEntry
		if err := rows.Scan(&a.ID, &a.EnrollmentID, &a.Date, &a.Present, &a.EnteredBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- snapshot ----

func (s *SQLStore) snapshotTxOptions() *sql.TxOptions {
	if s.driver == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil // sqlite: a deferred transaction already reads one snapshot
}

func (s *SQLStore) Snapshot(ctx context.Context, studentID string) (eligibility.AcademicRecord, error) {
	rec := eligibility.AcademicRecord{StudentID: studentID}
	tx, err := s.db.BeginTx(ctx, s.snapshotTxOptions())
	if err != nil {
		return rec, err
	}
	defer func() { _ = tx.Rollback() }()

	var att sql.NullFloat64
	err = tx.QueryRowContext(ctx, `SELECT year, attendance_percentage FROM students WHERE id=$1`, studentID).
		Scan(&rec.Year, &att)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}
	if err != nil {
		return rec, err
	}
	rec.AttendancePercentage = att.Float64

	rows, err := tx.QueryContext(ctx,
		`SELECT e.id, g.grade
		   FROM enrollments e LEFT JOIN grades g ON g.enrollment_id = e.id
		  WHERE e.student_id=$1
		  ORDER BY e.created_at, e.id, g.created_at, g.id`, studentID)
	if err != nil {
		return rec, err
	}
	idx := map[string]int{}
	for rows.Next() {
		var enrollmentID string
		var grade sql.NullString
		if err := rows.Scan(&enrollmentID, &grade); err != nil {
			rows.Close()
			return rec, err
		}
		i, ok := idx[enrollmentID]
		if !ok {
			i = len(rec.Enrollments)
			idx[enrollmentID] = i
			rec.Enrollments = append(rec.Enrollments, eligibility.EnrollmentGrades{EnrollmentID: enrollmentID})
		}
		if grade.Valid {
			rec.Enrollments[i].Grades = append(rec.Enrollments[i].Grades, eligibility.Grade(grade.String))
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return rec, err
	}
	rows.Close()
	return rec, tx.Commit()
}

// ---- dashboards ----

func (s *SQLStore) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM students),
		(SELECT COUNT(*) FROM teachers),
		(SELECT COUNT(*) FROM subjects),
		(SELECT COUNT(*) FROM enrollments),
		COALESCE((SELECT AVG(attendance_percentage) FROM students), 0),
		COALESCE((SELECT AVG(gpa) FROM students WHERE gpa IS NOT NULL), 0),
		(SELECT COUNT(DISTINCT direction) FROM students)`).
		Scan(&o.Students, &o.Teachers, &o.Subjects, &o.Enrollments, &o.AvgAttendance, &o.AvgGPA, &o.DirectionCount)
	return o, err
}

func (s *SQLStore) TeacherOverview(ctx context.Context, teacherID string) (TeacherOverview, error) {
	var o TeacherOverview
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(DISTINCT e.student_id)
		   FROM teacher_assignments ta
		   JOIN enrollments e ON e.subject_id = ta.subject_id AND e.academic_year = ta.academic_year
		  WHERE ta.teacher_id=$1),
		(SELECT COUNT(DISTINCT subject_id) FROM teacher_assignments WHERE teacher_id=$1)`, teacherID).
		Scan(&o.Students, &o.ActiveSubjects)
	return o, err
}

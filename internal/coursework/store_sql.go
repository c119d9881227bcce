package coursework

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pdp-edu/unimonitor/internal/db"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/records"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(conn *sql.DB) *SQLStore { return &SQLStore{db: conn} }

type scanner interface{ Scan(dest ...any) error }

// ---- assignments ----

const assignmentCols = `id, title, description, direction, year, order_index, due_date, created_by, created_at`

func scanAssignment(sc scanner) (Assignment, error) {
	var a Assignment
	var dir string
	var due sql.NullInt64
	if err := sc.Scan(&a.ID, &a.Title, &a.Description, &dir, &a.Year, &a.OrderIndex, &due, &a.CreatedBy, &a.CreatedAt); err != nil {
		return Assignment{}, err
	}
	a.Direction = records.Direction(dir)
	if due.Valid {
		a.DueDate = &due.Int64
	}
	return a, nil
}

func (s *SQLStore) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	a.Title = strings.TrimSpace(a.Title)
	switch {
	case a.Title == "":
		return Assignment{}, fmt.Errorf("%w: title required", records.ErrInvalidInput)
	case !a.Direction.Valid():
		return Assignment{}, fmt.Errorf("%w: direction %q", records.ErrInvalidInput, a.Direction)
	case a.Year < 1 || a.Year > 4:
		return Assignment{}, fmt.Errorf("%w: year %d", records.ErrInvalidInput, a.Year)
	case a.OrderIndex < 0:
		return Assignment{}, fmt.Errorf("%w: order index %d", records.ErrInvalidInput, a.OrderIndex)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (id, title, description, direction, year, order_index, due_date, created_by, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.Title, a.Description, string(a.Direction), a.Year, a.OrderIndex, a.DueDate, a.CreatedBy, a.CreatedAt)
	if err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, fmt.Errorf("assignment %s: %w", id, records.ErrNotFound)
	}
	return a, err
}

// ListAssignments returns the track for a direction and year in progression order.
func (s *SQLStore) ListAssignments(ctx context.Context, dir records.Direction, year int) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE direction=$1 AND year=$2 ORDER BY order_index, created_at, id`,
		string(dir), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- sessions ----

const sessionCols = `id, student_id, COALESCE(assignment_id,''), start_time, end_time, duration_minutes`

func scanSession(sc scanner) (Session, error) {
	var se Session
	var end sql.NullInt64
	var dur sql.NullFloat64
	if err := sc.Scan(&se.ID, &se.StudentID, &se.AssignmentID, &se.StartTime, &end, &dur); err != nil {
		return Session{}, err
	}
	if end.Valid {
		se.EndTime = &end.Int64
	}
	if dur.Valid {
		se.DurationMinutes = &dur.Float64
	}
	return se, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLStore) StartSession(ctx context.Context, se Session) (Session, error) {
	if se.ID == "" {
		se.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coding_sessions (id, student_id, assignment_id, start_time) VALUES ($1,$2,$3,$4)`,
		se.ID, se.StudentID, nullIfEmpty(se.AssignmentID), se.StartTime)
	if err != nil {
		return Session{}, err
	}
	return se, nil
}

// EndSession closes an open session of the student and adds its duration to
// the student's total coding hours in the same transaction.
func (s *SQLStore) EndSession(ctx context.Context, studentID, sessionID string, at int64) (Session, error) {
	var out Session
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		se, err := endSession(ctx, tx, studentID, sessionID, at)
		out = se
		return err
	})
	return out, err
}

func endSession(ctx context.Context, tx *sql.Tx, studentID, sessionID string, at int64) (Session, error) {
	se, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM coding_sessions WHERE id=$1 AND student_id=$2 AND end_time IS NULL`,
		sessionID, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("open session %s: %w", sessionID, records.ErrNotFound)
	}
	if err != nil {
		return Session{}, err
	}
	if at < se.StartTime {
		at = se.StartTime
	}
	minutes := float64(at-se.StartTime) / 60
	if _, err := tx.ExecContext(ctx,
		`UPDATE coding_sessions SET end_time=$1, duration_minutes=$2 WHERE id=$3`, at, minutes, se.ID); err != nil {
		return Session{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET total_coding_hours = total_coding_hours + $1 WHERE id=$2`, minutes/60, studentID); err != nil {
		return Session{}, err
	}
	se.EndTime, se.DurationMinutes = &at, &minutes
	return se, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, studentID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM coding_sessions WHERE student_id=$1 ORDER BY start_time DESC, id`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Session{}
	for rows.Next() {
		se, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, rows.Err()
}

// ---- submissions ----

const submissionCols = `id, assignment_id, student_id, code_key, status, submitted_at, COALESCE(reviewed_by,''), feedback, grade`

func scanSubmission(sc scanner) (Submission, error) {
	var sub Submission
	var st, grade string
	err := sc.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &sub.CodeKey, &st, &sub.SubmittedAt, &sub.ReviewedBy, &sub.Feedback, &grade)
	sub.Status, sub.Grade = Status(st), eligibility.Grade(grade)
	return sub, err
}

// CreateSubmission inserts the submission and, when sessionID names an open
// session of the student, closes it in the same transaction. A session that
// is unknown or already closed is left alone.
func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission, sessionID string) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.Status = StatusSubmitted
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO code_submissions (id, assignment_id, student_id, code_key, status, submitted_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			sub.ID, sub.AssignmentID, sub.StudentID, sub.CodeKey, string(sub.Status), sub.SubmittedAt); err != nil {
			return err
		}
		if sessionID == "" {
			return nil
		}
		_, err := endSession(ctx, tx, sub.StudentID, sessionID, sub.SubmittedAt)
		if errors.Is(err, records.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM code_submissions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %s: %w", id, records.ErrNotFound)
	}
	return sub, err
}

func (s *SQLStore) listSubmissions(ctx context.Context, query string, args ...any) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListSubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error) {
	return s.listSubmissions(ctx,
		`SELECT `+submissionCols+` FROM code_submissions WHERE student_id=$1 ORDER BY submitted_at DESC, id`, studentID)
}

func (s *SQLStore) RecentSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	return s.listSubmissions(ctx,
		`SELECT `+submissionCols+` FROM code_submissions ORDER BY submitted_at DESC, id LIMIT $1`, limit)
}

func (s *SQLStore) ReviewSubmission(ctx context.Context, id, reviewer string, grade eligibility.Grade, feedback string) (Submission, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE code_submissions SET status=$1, reviewed_by=$2, grade=$3, feedback=$4 WHERE id=$5`,
		string(StatusReviewed), reviewer, string(grade), feedback, id)
	if err != nil {
		return Submission{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, fmt.Errorf("submission %s: %w", id, records.ErrNotFound)
	}
	return s.GetSubmission(ctx, id)
}

// SubmittedAssignments returns the ids of assignments the student has submitted at least once.
func (s *SQLStore) SubmittedAssignments(ctx context.Context, studentID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT assignment_id FROM code_submissions WHERE student_id=$1`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *SQLStore) CountByStatus(ctx context.Context, st Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM code_submissions WHERE status=$1`, string(st)).Scan(&n)
	return n, err
}

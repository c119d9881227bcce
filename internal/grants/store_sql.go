package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdp-edu/unimonitor/internal/db"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/records"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(conn *sql.DB) *SQLStore { return &SQLStore{db: conn} }

const appCols = `id, student_id, grant_type, academic_year, status, eligibility_percentage,
	motivational_letter, internship_document, COALESCE(reviewed_by,''), review_notes, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanApp(sc scanner) (Application, error) {
	var a Application
	var gt, st string
	err := sc.Scan(&a.ID, &a.StudentID, &gt, &a.AcademicYear, &st, &a.EligibilityPercentage,
		&a.MotivationalLetter, &a.InternshipDocument, &a.ReviewedBy, &a.ReviewNotes, &a.CreatedAt, &a.UpdatedAt)
	a.GrantType = eligibility.GrantType(gt)
	a.Status = Status(st)
	return a, err
}

// Create inserts a pending application. A second pending application for the
// same student, grant type and academic year is rejected by ux_grant_pending.
func (s *SQLStore) Create(ctx context.Context, a Application) (Application, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = StatusPending
	a.UpdatedAt = a.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grant_applications (id, student_id, grant_type, academic_year, status, eligibility_percentage,
		   motivational_letter, internship_document, review_notes, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'',$9,$10)`,
		a.ID, a.StudentID, string(a.GrantType), a.AcademicYear, string(a.Status), a.EligibilityPercentage,
		a.MotivationalLetter, a.InternshipDocument, a.CreatedAt, a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Application{}, fmt.Errorf("pending %s application for %s: %w", a.GrantType, a.AcademicYear, records.ErrConflict)
	}
	if err != nil {
		return Application{}, err
	}
	return a, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Application, error) {
	a, err := scanApp(s.db.QueryRowContext(ctx, `SELECT `+appCols+` FROM grant_applications WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, fmt.Errorf("application %s: %w", id, records.ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) list(ctx context.Context, query string, args ...any) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Application{}
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListPending(ctx context.Context) ([]Application, error) {
	return s.list(ctx, `SELECT `+appCols+` FROM grant_applications WHERE status=$1 ORDER BY created_at, id`, string(StatusPending))
}

func (s *SQLStore) ListByStudent(ctx context.Context, studentID string) ([]Application, error) {
	return s.list(ctx, `SELECT `+appCols+` FROM grant_applications WHERE student_id=$1 ORDER BY created_at DESC, id`, studentID)
}

// Decide moves a pending application to status. Decided applications are final.
func (s *SQLStore) Decide(ctx context.Context, id string, status Status, reviewer, notes string, at int64) (Application, error) {
	var out Application
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var cur string
		err := tx.QueryRowContext(ctx, `SELECT status FROM grant_applications WHERE id=$1`, id).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("application %s: %w", id, records.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if Status(cur) != StatusPending {
			return fmt.Errorf("application %s is %s: %w", id, cur, ErrInvalidState)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE grant_applications SET status=$1, reviewed_by=$2, review_notes=$3, updated_at=$4 WHERE id=$5`,
			string(status), reviewer, notes, at, id); err != nil {
			return err
		}
		out, err = scanApp(tx.QueryRowContext(ctx, `SELECT `+appCols+` FROM grant_applications WHERE id=$1`, id))
		return err
	})
	return out, err
}

func (s *SQLStore) Stats(ctx context.Context, academicYear string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN status='pending' THEN 1 ELSE 0 END),0),
		   COALESCE(SUM(CASE WHEN status='pending' AND grant_type=$1 THEN 1 ELSE 0 END),0),
		   COALESCE(SUM(CASE WHEN status='pending' AND grant_type=$2 THEN 1 ELSE 0 END),0),
		   COALESCE(SUM(CASE WHEN status='approved' AND academic_year=$3 THEN 1 ELSE 0 END),0)
		 FROM grant_applications`,
		string(eligibility.GoldenMinds), string(eligibility.Unicorn), academicYear,
	).Scan(&st.PendingReviews, &st.GoldenMindsApps, &st.UnicornApps, &st.ApprovedThisYear)
	return st, err
}

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pdp-edu/unimonitor/internal/db"
)

const bcryptCost = bcrypt.DefaultCost

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func newID() string { return uuid.NewString() }

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return db.WithTx(ctx, s.db, nil, fn)
}

func isUniqueViolation(err error) bool { return db.IsUniqueViolation(err) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ---- users ----

const userCols = `id, username, password_hash, COALESCE(email,''), first_name, last_name, role, created_at`

func scanUser(sc scanner) (User, error) {
	var u User
	var role string
	if err := sc.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName, &role, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, err
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return u, err
}

func insertUser(ctx context.Context, q queryer, u User) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, email, first_name, last_name, role, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Username, u.PasswordHash, nullIfEmpty(u.Email), u.FirstName, u.LastName, string(u.Role), u.CreatedAt)
	return err
}

func (s *SQLStore) EnsureUser(ctx context.Context, u User, password string) (User, bool, error) {
	existing, err := s.GetUserByUsername(ctx, u.Username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}
	if !u.Role.Valid() {
		return User{}, false, fmt.Errorf("%w: role %q", ErrInvalidInput, u.Role)
	}
	if password == "" {
		return User{}, false, fmt.Errorf("%w: password required for new user %s", ErrInvalidInput, u.Username)
	}
	if u.PasswordHash, err = hashPassword(password); err != nil {
		return User{}, false, err
	}
	u.ID = newID()
	u.CreatedAt = time.Now().Unix()
	if err := insertUser(ctx, s.db, u); err != nil {
		if isUniqueViolation(err) {
			return User{}, false, fmt.Errorf("%w: username or email %s", ErrConflict, u.Username)
		}
		return User{}, false, err
	}
	return u, true, nil
}

// ---- students ----

const studentCols = `s.id, s.user_id, s.student_number, s.year, s.direction, s.gpa,
	s.attendance_percentage, s.total_coding_hours, s.created_at,
	u.username, u.first_name, u.last_name`

const studentFrom = ` FROM students s JOIN users u ON u.id = s.user_id`

func scanStudent(sc scanner) (Student, error) {
	var st Student
	var dir string
	var gpa sql.NullFloat64
	if err := sc.Scan(&st.ID, &st.UserID, &st.StudentNumber, &st.Year, &dir, &gpa,
		&st.AttendancePercentage, &st.TotalCodingHours, &st.CreatedAt,
		&st.Username, &st.FirstName, &st.LastName); err != nil {
		return Student{}, err
	}
	st.Direction = Direction(dir)
	if gpa.Valid {
		v := gpa.Float64
		st.GPA = &v
	}
	return st, nil
}

func validYear(y int) bool { return y >= 1 && y <= 4 }

func (s *SQLStore) CreateStudent(ctx context.Context, in NewStudent) (User, Student, error) {
	switch {
	case in.Username == "" || in.Password == "" || in.StudentNumber == "":
		return User{}, Student{}, fmt.Errorf("%w: username, password and student id required", ErrInvalidInput)
	case !validYear(in.Year):
		return User{}, Student{}, fmt.Errorf("%w: year %d", ErrInvalidInput, in.Year)
	case !in.Direction.Valid():
		return User{}, Student{}, fmt.Errorf("%w: direction %q", ErrInvalidInput, in.Direction)
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return User{}, Student{}, err
	}
	now := time.Now().Unix()
	u := User{
		ID: newID(), Username: in.Username, PasswordHash: hash, Email: in.Email,
		FirstName: in.FirstName, LastName: in.LastName, Role: RoleStudent, CreatedAt: now,
	}
	st := Student{
		ID: newID(), UserID: u.ID, StudentNumber: in.StudentNumber, Year: in.Year,
		Direction: in.Direction, GPA: in.GPA, CreatedAt: now,
		Username: u.Username, FirstName: u.FirstName, LastName: u.LastName,
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO students (id, user_id, student_number, year, direction, gpa, attendance_percentage, total_coding_hours, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,0,0,$7)`,
			st.ID, st.UserID, st.StudentNumber, st.Year, string(st.Direction), in.GPA, now)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, Student{}, fmt.Errorf("%w: username or student id", ErrConflict)
		}
		return User{}, Student{}, err
	}
	return u, st, nil
}

func (s *SQLStore) getStudentWhere(ctx context.Context, q queryer, where string, arg string) (Student, error) {
	st, err := scanStudent(q.QueryRowContext(ctx, `SELECT `+studentCols+studentFrom+` WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, fmt.Errorf("student %s: %w", arg, ErrNotFound)
	}
	return st, err
}

func (s *SQLStore) GetStudent(ctx context.Context, id string) (Student, error) {
	return s.getStudentWhere(ctx, s.db, `s.id=$1`, id)
}

func (s *SQLStore) GetStudentByUserID(ctx context.Context, userID string) (Student, error) {
	return s.getStudentWhere(ctx, s.db, `s.user_id=$1`, userID)
}

func (s *SQLStore) ListStudents(ctx context.Context, f StudentFilter) ([]Student, error) {
	query := `SELECT ` + studentCols + studentFrom + ` WHERE 1=1`
	var args []any
	if f.Year != 0 {
		args = append(args, f.Year)
		query += fmt.Sprintf(` AND s.year=$%d`, len(args))
	}
	if f.Direction != "" {
		args = append(args, string(f.Direction))
		query += fmt.Sprintf(` AND s.direction=$%d`, len(args))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY s.student_number LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateStudent(ctx context.Context, id string, p StudentPatch) (Student, error) {
	var out Student
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := s.getStudentWhere(ctx, tx, `s.id=$1`, id)
		if err != nil {
			return err
		}
		if p.Year != nil {
			if !validYear(*p.Year) {
				return fmt.Errorf("%w: year %d", ErrInvalidInput, *p.Year)
			}
			st.Year = *p.Year
		}
		if p.Direction != nil {
			if !p.Direction.Valid() {
				return fmt.Errorf("%w: direction %q", ErrInvalidInput, *p.Direction)
			}
			st.Direction = *p.Direction
		}
		if p.GPA != nil {
			st.GPA = p.GPA
		}
		if p.AttendancePercentage != nil {
			a := *p.AttendancePercentage
			if a < 0 || a > 100 {
				return fmt.Errorf("%w: attendance %v", ErrInvalidInput, a)
			}
			st.AttendancePercentage = a
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE students SET year=$1, direction=$2, gpa=$3, attendance_percentage=$4 WHERE id=$5`,
			st.Year, string(st.Direction), st.GPA, st.AttendancePercentage, id)
		out = st
		return err
	})
	return out, err
}

// ---- teachers ----

const teacherCols = `t.id, t.user_id, t.department, t.created_at, u.username, u.first_name, u.last_name`
const teacherFrom = ` FROM teachers t JOIN users u ON u.id = t.user_id`

func scanTeacher(sc scanner) (Teacher, error) {
	var t Teacher
	err := sc.Scan(&t.ID, &t.UserID, &t.Department, &t.CreatedAt, &t.Username, &t.FirstName, &t.LastName)
	return t, err
}

func (s *SQLStore) CreateTeacher(ctx context.Context, in NewTeacher) (User, Teacher, error) {
	if in.Username == "" || in.Password == "" {
		return User{}, Teacher{}, fmt.Errorf("%w: username and password required", ErrInvalidInput)
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return User{}, Teacher{}, err
	}
	now := time.Now().Unix()
	u := User{
		ID: newID(), Username: in.Username, PasswordHash: hash, Email: in.Email,
		FirstName: in.FirstName, LastName: in.LastName, Role: RoleTeacher, CreatedAt: now,
	}
	t := Teacher{
		ID: newID(), UserID: u.ID, Department: in.Department, CreatedAt: now,
		Username: u.Username, FirstName: u.FirstName, LastName: u.LastName,
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO teachers (id, user_id, department, created_at) VALUES ($1,$2,$3,$4)`,
			t.ID, t.UserID, t.Department, now)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, Teacher{}, fmt.Errorf("%w: username", ErrConflict)
		}
		return User{}, Teacher{}, err
	}
	return u, t, nil
}

func (s *SQLStore) GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error) {
	t, err := scanTeacher(s.db.QueryRowContext(ctx, `SELECT `+teacherCols+teacherFrom+` WHERE t.user_id=$1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Teacher{}, fmt.Errorf("teacher for user %s: %w", userID, ErrNotFound)
	}
	return t, err
}

func (s *SQLStore) ListTeachers(ctx context.Context) ([]Teacher, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+teacherCols+teacherFrom+` ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Teacher{}
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

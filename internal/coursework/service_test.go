package coursework

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdp-edu/unimonitor/internal/db/dbtest"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/records"
	"github.com/pdp-edu/unimonitor/internal/storage"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

type fixture struct {
	svc     *Service
	recs    *records.SQLStore
	events  *syncx.EventRepo
	store   *SQLStore
	blobDir string
	clock   *time.Time
	teacher records.User
	student records.Student
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)
	recs := records.NewSQLStore(conn, "sqlite")
	dir := t.TempDir()
	blobs, err := storage.NewFSStore(dir)
	require.NoError(t, err)
	events := syncx.NewEventRepo(conn, "")

	teacher, _, err := recs.EnsureUser(ctx, records.User{Username: "mentor", Role: records.RoleTeacher}, "pw")
	require.NoError(t, err)
	_, st, err := recs.CreateStudent(ctx, records.NewStudent{
		Username: "dilnoza", Password: "pw", StudentNumber: "PDP-777", Year: 2, Direction: records.DirectionFrontend,
	})
	require.NoError(t, err)

	clock := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	store := NewSQLStore(conn)
	svc := NewService(store, blobs, events)
	f := fixture{svc: svc, recs: recs, events: events, store: store, blobDir: dir, clock: &clock, teacher: teacher, student: st}
	svc.now = func() time.Time { return *f.clock }
	return f
}

func (f fixture) assignment(t *testing.T, title string, order int) Assignment {
	t.Helper()
	a, err := f.svc.CreateAssignment(context.Background(), Assignment{
		Title: title, Direction: records.DirectionFrontend, Year: 2, OrderIndex: order, CreatedBy: f.teacher.ID,
	})
	require.NoError(t, err)
	return a
}

func TestAssignmentsTrackOrderAndValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i, title := range []string{"F", "E", "D", "C", "B", "A"} {
		f.assignment(t, title, 6-i)
	}
	_, err := f.svc.CreateAssignment(ctx, Assignment{Title: "other track", Direction: records.DirectionBackend, Year: 2, CreatedBy: f.teacher.ID})
	require.NoError(t, err)

	all, err := f.svc.Assignments(ctx, f.student)
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "A", all[0].Title)

	up, err := f.svc.Upcoming(ctx, f.student)
	require.NoError(t, err)
	assert.Len(t, up, 5)

	for _, bad := range []Assignment{
		{Title: " ", Direction: records.DirectionFrontend, Year: 2},
		{Title: "x", Direction: "gamedev", Year: 2},
		{Title: "x", Direction: records.DirectionFrontend, Year: 0},
		{Title: "x", Direction: records.DirectionFrontend, Year: 2, OrderIndex: -1},
	} {
		bad.CreatedBy = f.teacher.ID
		_, err := f.svc.CreateAssignment(ctx, bad)
		assert.ErrorIs(t, err, records.ErrInvalidInput)
	}
}

func TestSessionAccumulatesCodingHours(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.assignment(t, "Landing page", 1)

	se, err := f.svc.StartSession(ctx, f.student.ID, a.ID)
	require.NoError(t, err)
	*f.clock = f.clock.Add(90 * time.Minute)

	ended, err := f.svc.EndSession(ctx, f.student.ID, se.ID)
	require.NoError(t, err)
	require.NotNil(t, ended.DurationMinutes)
	assert.Equal(t, 90.0, *ended.DurationMinutes)

	_, err = f.svc.EndSession(ctx, f.student.ID, se.ID)
	assert.ErrorIs(t, err, records.ErrNotFound)

	_, err = f.svc.StartSession(ctx, f.student.ID, "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)

	st, err := f.recs.GetStudent(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.5, st.TotalCodingHours)

	list, err := f.svc.Sessions(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmitClosesSessionAndAdvancesCurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.assignment(t, "Grid layout", 1)
	second := f.assignment(t, "Forms", 2)

	cur, err := f.svc.Current(ctx, f.student)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, first.ID, cur.ID)

	se, err := f.svc.StartSession(ctx, f.student.ID, first.ID)
	require.NoError(t, err)
	*f.clock = f.clock.Add(30 * time.Minute)

	_, err = f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: first.ID, Code: "   "})
	assert.ErrorIs(t, err, records.ErrInvalidInput)
	_, err = f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: first.ID, Code: strings.Repeat("x", maxCodeBytes+1)})
	assert.ErrorIs(t, err, records.ErrInvalidInput)
	_, err = f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: "missing", Code: "x"})
	assert.ErrorIs(t, err, records.ErrNotFound)

	sub, err := f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: first.ID, Code: "<div class=grid></div>", SessionID: se.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, sub.Status)

	st, err := f.recs.GetStudent(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, st.TotalCodingHours)

	cur, err = f.svc.Current(ctx, f.student)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, second.ID, cur.ID)

	_, err = f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: second.ID, Code: "<form/>"})
	require.NoError(t, err)
	cur, err = f.svc.Current(ctx, f.student)
	require.NoError(t, err)
	assert.Nil(t, cur)

	got, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "<div class=grid></div>", got.Code)

	hist, err := f.svc.History(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestReviewSubmission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.assignment(t, "Hooks", 1)
	sub, err := f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: a.ID, Code: "useState()"})
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, sub.ID, f.teacher.ID, "A+", "")
	assert.ErrorIs(t, err, records.ErrInvalidInput)
	_, err = f.svc.Review(ctx, "missing", f.teacher.ID, eligibility.GradeGood, "")
	assert.ErrorIs(t, err, records.ErrNotFound)

	got, err := f.svc.Review(ctx, sub.ID, f.teacher.ID, eligibility.GradeExcellent, " clean ")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, got.Status)
	assert.Equal(t, eligibility.GradeExcellent, got.Grade)
	assert.Equal(t, "clean", got.Feedback)
	assert.Equal(t, f.teacher.ID, got.ReviewedBy)

	recent, err := f.svc.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	evs, err := f.events.Since(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, syncx.TypeSubmissionCreated, evs[0].Type)
	assert.Equal(t, syncx.TypeSubmissionReviewed, evs[1].Type)
}

func TestPendingReviews(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.assignment(t, "Routing", 1)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: a.ID, Code: "route()"})
		require.NoError(t, err)
	}
	recent, err := f.svc.Recent(ctx)
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, recent[0].ID, f.teacher.ID, eligibility.GradePass, "")
	require.NoError(t, err)

	n, err := f.svc.PendingReviews(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSubmitRejectsAssignmentOutsideTrack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other, err := f.svc.CreateAssignment(ctx, Assignment{Title: "Kafka", Direction: records.DirectionBackend, Year: 2, CreatedBy: f.teacher.ID})
	require.NoError(t, err)
	nextYear, err := f.svc.CreateAssignment(ctx, Assignment{Title: "SSR", Direction: records.DirectionFrontend, Year: 3, CreatedBy: f.teacher.ID})
	require.NoError(t, err)

	for _, a := range []Assignment{other, nextYear} {
		_, err := f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: a.ID, Code: "x"})
		assert.ErrorIs(t, err, records.ErrInvalidInput, a.Title)
	}
	hist, err := f.svc.History(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

type brokenSubmissions struct{ *SQLStore }

func (brokenSubmissions) CreateSubmission(context.Context, Submission, string) (Submission, error) {
	return Submission{}, errors.New("connection reset")
}

func TestFailedSubmitLeavesSessionAndBlobsUntouched(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.assignment(t, "Carousel", 1)

	se, err := f.svc.StartSession(ctx, f.student.ID, a.ID)
	require.NoError(t, err)
	*f.clock = f.clock.Add(45 * time.Minute)

	f.svc.repo = brokenSubmissions{f.store}
	_, err = f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: a.ID, Code: "<ul/>", SessionID: se.ID})
	require.Error(t, err)
	f.svc.repo = f.store

	files, err := os.ReadDir(filepath.Join(f.blobDir, "submissions", f.student.ID))
	if err == nil {
		assert.Empty(t, files)
	} else {
		assert.ErrorIs(t, err, os.ErrNotExist)
	}

	sessions, err := f.svc.Sessions(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].EndTime)
	st, err := f.recs.GetStudent(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Zero(t, st.TotalCodingHours)
}

func TestCreateSubmissionRollsBackSessionClose(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.assignment(t, "Modal", 1)

	sub, err := f.svc.Submit(ctx, SubmitInput{Student: f.student, AssignmentID: a.ID, Code: "<dialog/>"})
	require.NoError(t, err)
	se, err := f.svc.StartSession(ctx, f.student.ID, a.ID)
	require.NoError(t, err)
	*f.clock = f.clock.Add(time.Hour)

	dup := Submission{ID: sub.ID, AssignmentID: a.ID, StudentID: f.student.ID, CodeKey: "k", SubmittedAt: f.clock.Unix()}
	_, err = f.store.CreateSubmission(ctx, dup, se.ID)
	require.Error(t, err)

	sessions, err := f.svc.Sessions(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].EndTime)

	_, err = f.store.CreateSubmission(ctx, Submission{AssignmentID: a.ID, StudentID: f.student.ID, CodeKey: "k2", SubmittedAt: f.clock.Unix()}, se.ID)
	require.NoError(t, err)
	st, err := f.recs.GetStudent(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.TotalCodingHours)
}

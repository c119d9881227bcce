package grants_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdp-edu/unimonitor/internal/db/dbtest"
	"github.com/pdp-edu/unimonitor/internal/eligibility"
	"github.com/pdp-edu/unimonitor/internal/grants"
	"github.com/pdp-edu/unimonitor/internal/records"
	"github.com/pdp-edu/unimonitor/internal/storage"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

type env struct {
	svc      *grants.Service
	recs     *records.SQLStore
	events   *syncx.EventRepo
	reviewer records.User
	blobDir  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	conn := dbtest.Open(t)
	recs := records.NewSQLStore(conn, "sqlite")
	dir := t.TempDir()
	blobs, err := storage.NewFSStore(dir)
	require.NoError(t, err)
	events := syncx.NewEventRepo(conn, "")

	reviewer, _, err := recs.EnsureUser(context.Background(), records.User{Username: "admin", Role: records.RoleGrantCommittee}, "pw")
	require.NoError(t, err)

	return env{
		svc:      grants.NewService(recs, grants.NewSQLStore(conn), blobs, events),
		recs:     recs,
		events:   events,
		reviewer: reviewer,
		blobDir:  dir,
	}
}

func (e env) student(t *testing.T, number string, year int, attendance float64) records.Student {
	t.Helper()
	ctx := context.Background()
	_, st, err := e.recs.CreateStudent(ctx, records.NewStudent{
		Username: strings.ToLower(number), Password: "pw", StudentNumber: number, Year: year, Direction: records.DirectionBackend,
	})
	require.NoError(t, err)
	st, err = e.recs.UpdateStudent(ctx, st.ID, records.StudentPatch{AttendancePercentage: &attendance})
	require.NoError(t, err)
	return st
}

func TestEligibilityUsesStoredRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	st := e.student(t, "PDP-100", 1, 70)
	res, err := e.svc.Eligibility(ctx, st.ID)
	require.NoError(t, err)
	assert.Nil(t, res.GoldenMinds())
	require.NotNil(t, res.Unicorn())
	assert.Equal(t, 67, res.Unicorn().Percentage)

	_, err = e.svc.Eligibility(ctx, "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestApplyAndReview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	st := e.student(t, "PDP-200", 2, 90)

	_, err := e.svc.Apply(ctx, grants.ApplyInput{StudentID: st.ID, GrantType: "platinum"})
	assert.ErrorIs(t, err, records.ErrInvalidInput)

	app, err := e.svc.Apply(ctx, grants.ApplyInput{
		StudentID:          st.ID,
		GrantType:          string(eligibility.GoldenMinds),
		AcademicYear:       "2024-25",
		MotivationalLetter: "  I build compilers.  ",
		Document:           strings.NewReader("%PDF-1.4"),
		DocumentName:       "Internship.PDF",
	})
	require.NoError(t, err)
	assert.Equal(t, grants.StatusPending, app.Status)
	assert.Equal(t, 100.0, app.EligibilityPercentage)
	assert.Equal(t, "I build compilers.", app.MotivationalLetter)
	assert.Equal(t, "internships/"+st.ID+"/"+app.ID+".pdf", app.InternshipDocument)

	rc, err := e.svc.Document(ctx, app.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4", string(body))

	_, err = e.svc.Apply(ctx, grants.ApplyInput{StudentID: st.ID, GrantType: string(eligibility.GoldenMinds), AcademicYear: "2024-25"})
	assert.ErrorIs(t, err, records.ErrConflict)

	// another year is a separate application
	_, err = e.svc.Apply(ctx, grants.ApplyInput{StudentID: st.ID, GrantType: string(eligibility.GoldenMinds), AcademicYear: "2025-26"})
	require.NoError(t, err)

	pending, err := e.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	got, err := e.svc.Review(ctx, app.ID, e.reviewer.ID, true, "strong")
	require.NoError(t, err)
	assert.Equal(t, grants.StatusApproved, got.Status)
	assert.Equal(t, e.reviewer.ID, got.ReviewedBy)
	assert.Equal(t, "strong", got.ReviewNotes)

	_, err = e.svc.Review(ctx, app.ID, e.reviewer.ID, false, "")
	assert.ErrorIs(t, err, grants.ErrInvalidState)
	_, err = e.svc.Review(ctx, "missing", e.reviewer.ID, false, "")
	assert.ErrorIs(t, err, records.ErrNotFound)

	// approval frees the pending slot
	_, err = e.svc.Apply(ctx, grants.ApplyInput{StudentID: st.ID, GrantType: string(eligibility.GoldenMinds), AcademicYear: "2024-25"})
	require.NoError(t, err)

	mine, err := e.svc.ListForStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	evs, err := e.events.Since(ctx, 0, 10)
	require.NoError(t, err)
	types := []string{}
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{syncx.TypeGrantApplied, syncx.TypeGrantApplied, syncx.TypeGrantReviewed, syncx.TypeGrantApplied}, types)
}

func TestApplyOutsideProgramYears(t *testing.T) {
	e := newEnv(t)
	st := e.student(t, "PDP-300", 4, 95)

	_, err := e.svc.Apply(context.Background(), grants.ApplyInput{StudentID: st.ID, GrantType: string(eligibility.GoldenMinds)})
	assert.ErrorIs(t, err, grants.ErrNotEligible)

	app, err := e.svc.Apply(context.Background(), grants.ApplyInput{StudentID: st.ID, GrantType: string(eligibility.Unicorn)})
	require.NoError(t, err)
	assert.Equal(t, records.CurrentAcademicYear(time.Now()), app.AcademicYear)
	assert.Empty(t, app.InternshipDocument)

	_, err = e.svc.Document(context.Background(), app.ID)
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestCommitteeStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.student(t, "PDP-401", 2, 85)
	b := e.student(t, "PDP-402", 3, 85)

	gm, err := e.svc.Apply(ctx, grants.ApplyInput{StudentID: a.ID, GrantType: string(eligibility.GoldenMinds)})
	require.NoError(t, err)
	_, err = e.svc.Apply(ctx, grants.ApplyInput{StudentID: a.ID, GrantType: string(eligibility.Unicorn)})
	require.NoError(t, err)
	_, err = e.svc.Apply(ctx, grants.ApplyInput{StudentID: b.ID, GrantType: string(eligibility.Unicorn)})
	require.NoError(t, err)
	_, err = e.svc.Review(ctx, gm.ID, e.reviewer.ID, true, "")
	require.NoError(t, err)

	st, err := e.svc.CommitteeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, grants.Stats{PendingReviews: 2, GoldenMindsApps: 0, UnicornApps: 2, ApprovedThisYear: 1}, st)
}

func TestDuplicateApplyKeepsNoDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	st := e.student(t, "PDP-300", 3, 95)

	apply := func() (grants.Application, error) {
		return e.svc.Apply(ctx, grants.ApplyInput{
			StudentID: st.ID, GrantType: string(eligibility.Unicorn), AcademicYear: "2026-27",
			Document: strings.NewReader("%PDF"), DocumentName: "offer.pdf",
		})
	}
	app, err := apply()
	require.NoError(t, err)
	_, err = apply()
	assert.ErrorIs(t, err, records.ErrConflict)

	files, err := os.ReadDir(filepath.Join(e.blobDir, "internships", st.ID))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, app.ID+".pdf", files[0].Name())
}

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/pdp-edu/unimonitor/internal/api/http"
	authmw "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/coursework"
	"github.com/pdp-edu/unimonitor/internal/db/dbtest"
	"github.com/pdp-edu/unimonitor/internal/grants"
	"github.com/pdp-edu/unimonitor/internal/records"
	"github.com/pdp-edu/unimonitor/internal/storage"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	auth   *authmw.AuthService
	store  *records.SQLStore
	tokens map[records.Role]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t)
	store := records.NewSQLStore(conn, "sqlite")
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	events := syncx.NewEventRepo(conn, "test")
	a := authmw.NewAuthService("test-secret", time.Hour)

	h := &harness{t: t, auth: a, store: store, tokens: map[records.Role]string{}}
	for name, role := range map[string]records.Role{
		"sa": records.RoleStudentAffairs, "aa": records.RoleAcademicAffairs, "gc": records.RoleGrantCommittee,
	} {
		u, _, err := store.EnsureUser(ctx, records.User{Username: name, Role: role}, "pw")
		require.NoError(t, err)
		h.tokens[role] = h.token(u.ID, role)
	}
	tu, _, err := store.CreateTeacher(ctx, records.NewTeacher{Username: "mentor", Password: "pw123456", Department: "CS"})
	require.NoError(t, err)
	h.tokens[records.RoleTeacher] = h.token(tu.ID, records.RoleTeacher)

	r := chi.NewRouter()
	api.MountAPI(r, api.Deps{
		Auth:       a,
		Records:    store,
		Grants:     grants.NewService(store, grants.NewSQLStore(conn), blobs, events),
		Coursework: coursework.NewService(coursework.NewSQLStore(conn), blobs, events),
		Events:     events,
		Roles:      cache.New(time.Minute, time.Minute),
	})
	h.srv = httptest.NewServer(r)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) token(sub string, role records.Role) string {
	tok, err := h.auth.IssueJWT(sub, string(role))
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(tok, method, path string, body any) (int, []byte) {
	h.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	return h.send(tok, req)
}

func (h *harness) send(tok string, req *http.Request) (int, []byte) {
	h.t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

// createStudent goes through the API and returns the student id and a token.
func (h *harness) createStudent(username, number string, year int) (string, string) {
	h.t.Helper()
	code, body := h.do(h.tokens[records.RoleStudentAffairs], http.MethodPost, "/students", map[string]any{
		"username": username, "password": "secret123", "studentId": number, "year": year, "direction": "backend",
	})
	require.Equal(h.t, http.StatusCreated, code, string(body))
	var out struct {
		User    records.User    `json:"user"`
		Student records.Student `json:"student"`
	}
	require.NoError(h.t, json.Unmarshal(body, &out))
	return out.Student.ID, h.token(out.User.ID, records.RoleStudent)
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func TestAuthAndRBAC(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do("", http.MethodGet, "/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	_, stTok := h.createStudent("aziz", "PDP-001", 2)
	code, _ = h.do(stTok, http.MethodGet, "/students", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := h.do(stTok, http.MethodGet, "/auth/user", nil)
	require.Equal(t, http.StatusOK, code)
	me := decode[records.User](t, body)
	assert.Equal(t, records.RoleStudent, me.Role)

	// a forged role claim is replaced by the stored role
	forged := h.token(me.ID, records.RoleGrantCommittee)
	code, _ = h.do(forged, http.MethodGet, "/grants/pending", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = h.do(h.tokens[records.RoleStudentAffairs], http.MethodPost, "/students", map[string]any{
		"username": "aziz", "password": "secret123", "studentId": "PDP-009", "year": 2, "direction": "backend",
	})
	assert.Equal(t, http.StatusConflict, code, string(body))

	code, body = h.do(h.tokens[records.RoleStudentAffairs], http.MethodPost, "/students", map[string]any{
		"username": "x", "password": "1", "studentId": "", "year": 7, "direction": "gamedev",
	})
	require.Equal(t, http.StatusBadRequest, code)
	fields := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, body).Fields
	for _, k := range []string{"username", "password", "studentId", "year", "direction"} {
		assert.Contains(t, fields, k)
	}
}

func TestEligibilityEndpoints(t *testing.T) {
	h := newHarness(t)
	sa := h.tokens[records.RoleStudentAffairs]
	studentID, stTok := h.createStudent("aziz", "PDP-001", 2)

	code, body := h.do(h.tokens[records.RoleAcademicAffairs], http.MethodPost, "/subjects", map[string]any{
		"name": "Algorithms", "code": "CS201", "year": 2, "credits": 6,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	subject := decode[records.Subject](t, body)

	code, body = h.do(sa, http.MethodPost, "/enrollments", map[string]any{"studentId": studentID, "subjectId": subject.ID})
	require.Equal(t, http.StatusCreated, code, string(body))
	enrollment := decode[records.Enrollment](t, body)

	teacher := h.tokens[records.RoleTeacher]
	for _, g := range []string{"pass", "pass", "retake"} {
		code, body = h.do(teacher, http.MethodPost, "/grades", map[string]any{"enrollmentId": enrollment.ID, "grade": g})
		require.Equal(t, http.StatusCreated, code, string(body))
	}
	for i := 0; i < 5; i++ {
		code, body = h.do(teacher, http.MethodPost, "/attendance", map[string]any{"enrollmentId": enrollment.ID, "present": i != 0})
		require.Equal(t, http.StatusCreated, code, string(body))
	}

	code, body = h.do(stTok, http.MethodGet, "/grants/eligibility", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.JSONEq(t, `{
		"goldenMinds": {"grantType": "golden_minds", "percentage": 67, "criteria": [
			{"label": "No retakes in current academic year", "met": false, "value": "1 retakes"},
			{"label": "Max 3 'Pass' grades", "met": true, "value": "2 passes"},
			{"label": "High attendance (≥80%)", "met": true, "value": "80%"}
		]},
		"unicorn": {"grantType": "unicorn", "percentage": 100, "criteria": [
			{"label": "Max 2 retakes", "met": true, "value": "1 retakes"},
			{"label": "High grades", "met": true, "value": "2 passes"},
			{"label": "High attendance (≥75%)", "met": true, "value": "80%"}
		]}
	}`, string(body))

	code, _ = h.do(stTok, http.MethodGet, "/students/"+studentID+"/eligibility", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(h.tokens[records.RoleGrantCommittee], http.MethodGet, "/students/"+studentID+"/eligibility", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = h.do(h.tokens[records.RoleGrantCommittee], http.MethodGet, "/students/missing/eligibility", nil)
	assert.Equal(t, http.StatusNotFound, code)

	firstYearID, bekTok := h.createStudent("bek", "PDP-002", 1)
	code, _ = h.do(bekTok, http.MethodGet, "/students/"+studentID+"/eligibility", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(bekTok, http.MethodGet, "/students/"+studentID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(bekTok, http.MethodGet, "/students/"+firstYearID+"/grants", nil)
	assert.Equal(t, http.StatusOK, code)
	code, body = h.do(teacher, http.MethodGet, "/students/"+firstYearID+"/eligibility", nil)
	require.Equal(t, http.StatusOK, code)
	res := decode[map[string]json.RawMessage](t, body)
	assert.Equal(t, "null", string(res["goldenMinds"]))

	// staff accounts have no student profile
	code, _ = h.do(sa, http.MethodGet, "/students/me", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = h.do(stTok, http.MethodGet, "/students/me", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = h.do(sa, http.MethodGet, "/student-affairs/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"activeStudents":2,"facultyCount":1,"avgAttendance":40,"totalSubjects":1}`, string(body))

	code, body = h.do(h.tokens[records.RoleAcademicAffairs], http.MethodGet, "/events?limit=100", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]syncx.Event](t, body), 8)
}

func TestGrantApplicationFlow(t *testing.T) {
	h := newHarness(t)
	gc := h.tokens[records.RoleGrantCommittee]
	_, stTok := h.createStudent("aziz", "PDP-001", 3)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("grantType", "unicorn"))
	require.NoError(t, mw.WriteField("motivationalLetter", "please"))
	fw, err := mw.CreateFormFile("internshipDocument", "offer.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/grants/applications", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, body := h.send(stTok, req)
	require.Equal(t, http.StatusCreated, code, string(body))
	app := decode[grants.Application](t, body)
	assert.Equal(t, grants.StatusPending, app.Status)

	code, _ = h.do(stTok, http.MethodPost, "/grants/applications", map[string]any{"grantType": "unicorn"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = h.do(stTok, http.MethodPost, "/grants/applications", map[string]any{"grantType": "diamond"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(stTok, http.MethodGet, "/grants/applications/mine", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]grants.Application](t, body), 1)

	code, _ = h.do(stTok, http.MethodGet, "/grants/pending", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, body = h.do(gc, http.MethodGet, "/grants/pending", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]grants.Application](t, body), 1)

	code, body = h.do(gc, http.MethodGet, "/grants/applications/"+app.ID+"/document", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "%PDF", string(body))

	code, body = h.do(gc, http.MethodPost, "/grants/applications/"+app.ID+"/review", map[string]any{"decision": "approve", "notes": "ok"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, grants.StatusApproved, decode[grants.Application](t, body).Status)

	code, _ = h.do(gc, http.MethodPost, "/grants/applications/"+app.ID+"/review", map[string]any{"decision": "reject"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = h.do(gc, http.MethodPost, "/grants/applications/"+app.ID+"/review", map[string]any{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = h.do(gc, http.MethodGet, "/grants/committee/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"pendingReviews":0,"goldenMindsApps":0,"unicornApps":0,"approvedThisYear":1}`, string(body))
}

func TestGoldenMindsOutsideYearsIsUnprocessable(t *testing.T) {
	h := newHarness(t)
	_, stTok := h.createStudent("aziz", "PDP-001", 4)
	code, body := h.do(stTok, http.MethodPost, "/grants/applications", map[string]any{"grantType": "golden_minds"})
	assert.Equal(t, http.StatusUnprocessableEntity, code, string(body))
}

func TestCourseworkFlow(t *testing.T) {
	h := newHarness(t)
	teacher := h.tokens[records.RoleTeacher]
	_, stTok := h.createStudent("aziz", "PDP-001", 2)
	_, otherTok := h.createStudent("bek", "PDP-002", 2)

	code, body := h.do(h.tokens[records.RoleStudentAffairs], http.MethodPost, "/assignments", map[string]any{
		"title": "REST API", "direction": "backend", "year": 2, "orderIndex": 1,
	})
	require.Equal(t, http.StatusForbidden, code, string(body))

	code, body = h.do(teacher, http.MethodPost, "/assignments", map[string]any{
		"title": "REST API", "direction": "backend", "year": 2, "orderIndex": 1,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	a := decode[coursework.Assignment](t, body)

	code, body = h.do(stTok, http.MethodGet, "/assignments/current", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, a.ID, decode[coursework.Assignment](t, body).ID)

	code, body = h.do(stTok, http.MethodPost, "/coding-sessions/start", map[string]any{"assignmentId": a.ID})
	require.Equal(t, http.StatusCreated, code, string(body))
	se := decode[coursework.Session](t, body)

	code, body = h.do(stTok, http.MethodPost, "/submissions", map[string]any{
		"assignmentId": a.ID, "code": "package main", "sessionId": se.ID,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	sub := decode[coursework.Submission](t, body)

	code, body = h.do(stTok, http.MethodGet, "/assignments/current", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "null", strings.TrimSpace(string(body)))

	code, body = h.do(stTok, http.MethodGet, "/submissions/"+sub.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "package main", decode[coursework.Submission](t, body).Code)
	code, _ = h.do(otherTok, http.MethodGet, "/submissions/"+sub.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = h.do(teacher, http.MethodGet, "/teachers/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), decode[map[string]any](t, body)["pendingReviews"])

	code, body = h.do(teacher, http.MethodPost, "/submissions/"+sub.ID+"/review", map[string]any{"grade": "good", "feedback": "nice"})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, coursework.StatusReviewed, decode[coursework.Submission](t, body).Status)

	code, body = h.do(stTok, http.MethodGet, "/submissions/history", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]coursework.Submission](t, body), 1)

	code, body = h.do(stTok, http.MethodGet, "/coding-sessions", nil)
	require.Equal(t, http.StatusOK, code)
	sessions := decode[[]coursework.Session](t, body)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].EndTime)

	code, _ = h.do(stTok, http.MethodGet, "/submissions/recent", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestTeacherAssignments(t *testing.T) {
	h := newHarness(t)
	aa := h.tokens[records.RoleAcademicAffairs]

	teachers, err := h.store.ListTeachers(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 1)

	code, body := h.do(aa, http.MethodPost, "/subjects", map[string]any{"name": "Algorithms", "code": "CS201", "year": 2, "credits": 6})
	require.Equal(t, http.StatusCreated, code, string(body))
	sub := decode[records.Subject](t, body)

	code, body = h.do(aa, http.MethodPost, "/teacher-assignments", map[string]any{"teacherId": teachers[0].ID, "subjectId": sub.ID})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = h.do(h.tokens[records.RoleTeacher], http.MethodGet, "/teachers/me/assignments", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	list := decode[[]records.TeacherAssignment](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, sub.ID, list[0].SubjectID)

	code, _ = h.do(aa, http.MethodGet, "/teachers/me/assignments", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestOversizedInternshipDocumentIsRejected(t *testing.T) {
	h := newHarness(t)
	studentID, stTok := h.createStudent("aziz", "PDP-001", 3)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("grantType", "unicorn"))
	fw, err := mw.CreateFormFile("internshipDocument", "huge.pdf")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("A"), 11<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/grants/applications", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+stTok)
	req.Header.Set("Expect", "100-continue")
	client := &http.Client{Transport: &http.Transport{ExpectContinueTimeout: 5 * time.Second}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	code, body := h.do(h.tokens[records.RoleGrantCommittee], http.MethodGet, "/students/"+studentID+"/grants", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]grants.Application](t, body))
}

func TestSubmissionSizeLimitIsReportedByService(t *testing.T) {
	h := newHarness(t)
	_, stTok := h.createStudent("aziz", "PDP-001", 2)
	code, body := h.do(h.tokens[records.RoleTeacher], http.MethodPost, "/assignments", map[string]any{
		"title": "Big file", "direction": "backend", "year": 2, "orderIndex": 1,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	a := decode[coursework.Assignment](t, body)

	code, body = h.do(stTok, http.MethodPost, "/submissions", map[string]any{
		"assignmentId": a.ID, "code": strings.Repeat("x", 1<<20),
	})
	assert.Equal(t, http.StatusCreated, code, string(body))

	code, body = h.do(stTok, http.MethodPost, "/submissions", map[string]any{
		"assignmentId": a.ID, "code": strings.Repeat("x", 1<<20+1),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "exceeds")
}

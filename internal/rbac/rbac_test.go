package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "eligibility:view-own", true},
		{"student", "eligibility:view-all", false},
		{"student", "grants:review", false},
		{"teacher", "grades:enter", true},
		{"teacher", "students:create", false},
		{"student_affairs", "students:create", true},
		{"student_affairs", "students:update", true},
		{"academic_affairs", "subjects:create", true},
		{"academic_affairs", "students:create", false},
		{"grant_committee", "grants:review", true},
		{"grant_committee", "grades:enter", false},
		{"nobody", "subjects:list", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Has(tc.role, tc.perm), "%s %s", tc.role, tc.perm)
	}

	assert.True(t, c.Any("teacher", "students:create", "students:list"))
}

func TestMatchPerm(t *testing.T) {
	assert.True(t, matchPerm("*", "anything"))
	assert.True(t, matchPerm("students:*", "students:list"))
	assert.False(t, matchPerm("students:*", "teachers:list"))
	assert.False(t, matchPerm("students:list", "students:create"))
}

func TestRequireMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	serve := func(h http.Handler, role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(WithRole(req.Context(), role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	h := Require("grants:review")(ok)
	assert.Equal(t, http.StatusNoContent, serve(h, "grant_committee"))
	assert.Equal(t, http.StatusForbidden, serve(h, "student"))
	assert.Equal(t, http.StatusForbidden, serve(h, ""))

	either := RequireAny("eligibility:view-own", "eligibility:view-all")(ok)
	assert.Equal(t, http.StatusNoContent, serve(either, "student"))
	assert.Equal(t, http.StatusNoContent, serve(either, "teacher"))

	owner := RequireOwnerOr("students:list", func(r *http.Request) bool { return r.URL.Query().Get("me") == "1" })(ok)
	assert.Equal(t, http.StatusForbidden, serve(owner, "student"))
	assert.Equal(t, http.StatusNoContent, serve(owner, "teacher"))
}

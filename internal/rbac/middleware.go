package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

func guard(allow func(role string, r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if !allow(role, r) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return guard(func(role string, _ *http.Request) bool {
		return role != "" && defaultChecker.Has(role, perm)
	})
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return guard(func(role string, _ *http.Request) bool {
		return role != "" && defaultChecker.Any(role, perms...)
	})
}

// RequireOwnerOr lets the request through when isOwner holds or the role has perm.
func RequireOwnerOr(perm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return guard(func(role string, r *http.Request) bool {
		return isOwner(r) || (role != "" && defaultChecker.Has(role, perm))
	})
}

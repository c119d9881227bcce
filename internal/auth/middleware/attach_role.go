package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/patrickmn/go-cache"

	"github.com/pdp-edu/unimonitor/internal/rbac"
	"github.com/pdp-edu/unimonitor/internal/records"
)

// AttachRoleFromDB swaps the claimed role for the stored one. Lookups are
// cached per subject in roles. allowClaimFallback=true in dev/offline; false in prod.
func AttachRoleFromDB(users UserSource, roles *cache.Cache, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx)

			if v, ok := roles.Get(sub); ok {
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, v.(string))))
				return
			}

			u, err := users.GetUser(ctx, sub)
			switch {
			case err == nil && u.Role != "":
				roles.SetDefault(sub, string(u.Role))
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, string(u.Role))))
				return

			case errors.Is(err, records.ErrNotFound):
				// deleted users keep nothing unless dev fallback is on
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return

			default:
				log.Printf("attach role %s: %v", sub, err)
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}

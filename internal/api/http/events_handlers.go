package http

import (
	"net/http"
	"strconv"

	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

// GET /events?after=&limit=
func EventsHandler(repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := repo.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, evs)
	}
}

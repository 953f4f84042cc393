package httpapi

import (
	"net/http"

	"gatehouse.org/internal/auth"
)

// handleVisitStats serves the visit aggregate from behind the cache. The
// cache is a latency shield only; with a dead backend this degrades to
// recomputing the aggregate per request.
func (a *API) handleVisitStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if err := requirePermission(r, auth.PermViewStats); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	stats, err := a.stats.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

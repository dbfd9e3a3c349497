package http

import (
	"fmt"
	"net/http"

	"pocketbook/internal/core"
	"pocketbook/internal/recurrence"
)

// handleHistory serves the bucketed history chart data. Responses are
// memoized per granularity and range until a budget mutation purges them.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	g := recurrence.Granularity(r.URL.Query().Get("granularity"))
	if g == "" {
		g = recurrence.GranularityMonthly
	}
	if !g.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown granularity %q", g)})
		return
	}

	var from, to core.Date
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid from date", errBadRequest))
			return
		}
		from = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid to date", errBadRequest))
			return
		}
		to = d
	}

	key := fmt.Sprintf("%s|%s|%s", g, from.ISO(), to.ISO())
	if buckets, ok := s.bucketCache.Get(key); ok {
		writeJSON(w, http.StatusOK, buckets)
		return
	}

	budgets, err := s.store.Budgets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	buckets := recurrence.BucketByPeriod(recurrence.RangeFilter(budgets, from, to), g)
	if buckets == nil {
		buckets = []recurrence.Bucket{}
	}
	s.bucketCache.Set(key, buckets)
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	s.syncer.TriggerSync()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.store.PendingCount(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	state := "idle"
	if s.syncer.Syncing() {
		state = "syncing"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   state,
		"pending": pending,
	})
}

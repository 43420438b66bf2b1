package api

import (
	"net/http"
)

// handleGetReport handles GET /reports/{id}.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report"
	rec, err := s.deps.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if _, err := s.authorizeProfile(r.Context(), rec.ProfileID); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListReports handles GET /profiles/{id}/reports?limit=N.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_reports"
	id := r.PathValue("id")
	limit, err := limitParam(r, op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	list, err := s.deps.ReportHistory(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleLatestReport handles GET /profiles/{id}/reports/latest.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.latest_report"
	id := r.PathValue("id")
	if _, err := s.authorizeProfile(r.Context(), id); err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	rec, err := s.deps.LatestReport(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

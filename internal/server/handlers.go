package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"meridian/internal/pipeline"
	"meridian/internal/send"
)

// HealthResponse is the /health body
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Uptime string            `json:"uptime"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	uptime := time.Since(serverStartTime).Round(time.Second).String()

	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks, Uptime: uptime})
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks, Uptime: uptime})
}

// handleCronIngest handles GET /api/cron/ingest
func (s *Server) handleCronIngest(w http.ResponseWriter, r *http.Request) {
	stats, err := s.runner.Ingest(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Cron ingest failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "ingest": stats})
}

// handleCronGenerate handles GET /api/cron/generate
func (s *Server) handleCronGenerate(w http.ResponseWriter, r *http.Request) {
	d, err := s.runner.Generate(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Cron generate failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "digest": d})
}

// handleCronSend handles GET /api/cron/send
func (s *Server) handleCronSend(w http.ResponseWriter, r *http.Request) {
	s.sendWith(w, r, send.Options{})
}

// handleSendTest handles POST /api/manual/send-test
func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	s.sendWith(w, r, send.Options{ForceResend: true, BypassHITL: true, TestMode: true})
}

func (s *Server) sendWith(w http.ResponseWriter, r *http.Request, opts send.Options) {
	res, err := s.runner.Send(r.Context(), opts)
	if err != nil {
		s.log.Error().Err(err).Bool("test", opts.TestMode).Msg("Send failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*send.Result
	}{OK: true, Result: res})
}

// handleRunAll handles POST /api/manual/run-all
func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	s.runAll(w, r, false)
}

// handleResetAndRun handles POST /api/manual/reset-and-run
func (s *Server) handleResetAndRun(w http.ResponseWriter, r *http.Request) {
	s.runAll(w, r, true)
}

// Manual full runs always attempt delivery after regenerating.
func (s *Server) runAll(w http.ResponseWriter, r *http.Request, reset bool) {
	res, err := s.runner.RunAll(r.Context(), pipeline.RunOptions{
		Reset: reset,
		Send:  send.Options{ForceResend: true, BypassHITL: true},
	})
	if err != nil {
		s.log.Error().Err(err).Bool("reset", reset).Msg("Manual run failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*pipeline.RunResult
	}{OK: true, RunResult: res})
}

// handleBackfillSummaries handles POST /api/manual/backfill-summaries
func (s *Server) handleBackfillSummaries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", pipeline.DefaultBackfillLimit)
	updated, skipped, err := s.runner.BackfillBriefs(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Brief backfill failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "updated": updated, "skipped": skipped})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes a JSON error body
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"ok": false,
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}

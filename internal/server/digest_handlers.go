package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meridian/internal/archive"
	"meridian/internal/core"
	"meridian/internal/persistence"
)

// DigestListResponse represents the response for listing digests
type DigestListResponse struct {
	Digests []DigestSummary `json:"digests"`
	Total   int             `json:"total"`
}

// DigestSummary represents a digest in list views
type DigestSummary struct {
	ID           string            `json:"id"`
	Date         string            `json:"digest_date"`
	Status       core.DigestStatus `json:"status"`
	BriefSummary string            `json:"brief_summary,omitempty"`
	Banking      int               `json:"banking_stories"`
	AI           int               `json:"ai_stories"`
	Fallback     bool              `json:"fallback"`
	ApprovedAt   *time.Time        `json:"approved_at,omitempty"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IssueSummary is one entry of the public archive
type IssueSummary struct {
	Date         string           `json:"date"`
	BriefSummary string           `json:"briefSummary,omitempty"`
	TotalStories int              `json:"totalStories"`
	SentAt       *time.Time       `json:"sentAt,omitempty"`
	Content      core.DailyDigest `json:"content"`
}

func summarize(d core.Digest) DigestSummary {
	return DigestSummary{
		ID:           d.ID,
		Date:         d.DigestDate,
		Status:       d.Status,
		BriefSummary: d.Content.BriefSummary,
		Banking:      len(d.Content.BankingStories),
		AI:           len(d.Content.AIStories),
		Fallback:     d.Meta.Fallback,
		ApprovedAt:   d.ApprovedAt,
		SentAt:       d.SentAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// handleListDigests handles GET /api/digests
func (s *Server) handleListDigests(w http.ResponseWriter, r *http.Request) {
	digests, err := s.db.Digests().ListRecent(r.Context(), queryInt(r, "limit", 30))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list digests")
		s.respondError(w, http.StatusInternalServerError, "Failed to load digests")
		return
	}

	summaries := make([]DigestSummary, len(digests))
	for i, d := range digests {
		summaries[i] = summarize(d)
	}
	s.respondJSON(w, http.StatusOK, DigestListResponse{Digests: summaries, Total: len(summaries)})
}

// handleGetDigest handles GET /api/digests/{date}; "today" resolves to the
// current digest date
func (s *Server) handleGetDigest(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if date == "today" {
		date = s.runner.Today()
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		s.respondError(w, http.StatusBadRequest, "Date must be YYYY-MM-DD")
		return
	}

	d, err := s.db.Digests().Get(r.Context(), date, core.DefaultCategory)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Digest not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("date", date).Msg("Failed to get digest")
		s.respondError(w, http.StatusInternalServerError, "Failed to load digest")
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

// handleApproveDigest handles POST /api/digests/{id}/approve
func (s *Server) handleApproveDigest(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "approve", s.db.Digests().Approve)
}

// handleSkipDigest handles POST /api/digests/{id}/skip
func (s *Server) handleSkipDigest(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "skip", s.db.Digests().Skip)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, action string, apply func(ctx context.Context, id string) (bool, error)) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	current, err := s.db.Digests().GetByID(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Digest not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("Failed to load digest")
		s.respondError(w, http.StatusInternalServerError, "Failed to load digest")
		return
	}

	ok, err := apply(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Str("action", action).Msg("Digest transition failed")
		s.respondError(w, http.StatusInternalServerError, "Failed to update digest")
		return
	}
	if !ok {
		s.respondError(w, http.StatusConflict, "Cannot "+action+" a "+string(current.Status)+" digest")
		return
	}

	updated, err := s.db.Digests().GetByID(ctx, id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to load digest")
		return
	}
	s.log.Info().Str("id", id).Str("action", action).Str("status", string(updated.Status)).Msg("Digest updated")
	s.respondJSON(w, http.StatusOK, summarize(*updated))
}

// handleListIssues handles GET /api/issues, the public archive of sent digests
func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	digests, err := s.db.Digests().ListSent(r.Context(), queryInt(r, "limit", 365))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list sent digests")
		s.respondError(w, http.StatusInternalServerError, "Failed to load issues")
		return
	}

	issues := make([]IssueSummary, len(digests))
	for i, d := range digests {
		issues[i] = IssueSummary{
			Date:         d.DigestDate,
			BriefSummary: d.Content.BriefSummary,
			TotalStories: d.Content.TotalStories(),
			SentAt:       d.SentAt,
			Content:      d.Content,
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"issues": issues})
}

// handleSearchIssues handles GET /api/issues/search?q=, a full-text search
// over the stories of sent digests
func (s *Server) handleSearchIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	digests, err := s.db.Digests().ListSent(r.Context(), 365)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list sent digests")
		s.respondError(w, http.StatusInternalServerError, "Failed to load issues")
		return
	}

	idx, err := archive.Build(digests)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to index issues")
		s.respondError(w, http.StatusInternalServerError, "Search unavailable")
		return
	}
	defer idx.Close()

	hits, err := idx.Search(q, queryInt(r, "limit", 20))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid query")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "results": hits})
}

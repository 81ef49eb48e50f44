package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"meridian/internal/core"
	"meridian/internal/persistence"
)

// SubscriberListResponse represents the response for listing subscribers
type SubscriberListResponse struct {
	Subscribers []core.Subscriber `json:"subscribers"`
	Total       int               `json:"total"`
	Active      int               `json:"active"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// readEmail accepts a JSON body or a form field named email
func readEmail(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req emailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Email, nil
	}
	return r.FormValue("email"), nil
}

// handleSubscribe handles POST /api/subscribe
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	addr, err := readEmail(w, r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := s.db.Subscribers().AddOrActivate(r.Context(), addr)
	if errors.Is(err, persistence.ErrInvalidEmail) {
		s.respondError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to add subscriber")
		s.respondError(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "email": sub.Email})
}

// handleListSubscribers handles GET /api/subscribers
func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.db.Subscribers().List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list subscribers")
		s.respondError(w, http.StatusInternalServerError, "Failed to list subscribers")
		return
	}

	resp := SubscriberListResponse{Subscribers: subs, Total: len(subs)}
	if resp.Subscribers == nil {
		resp.Subscribers = []core.Subscriber{}
	}
	for _, sub := range subs {
		if sub.Status == core.SubscriberActive {
			resp.Active++
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleUnsubscribe handles POST /api/subscribers/unsubscribe
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	addr, err := readEmail(w, r)
	if err != nil || strings.TrimSpace(addr) == "" {
		s.respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	err = s.db.Subscribers().Unsubscribe(r.Context(), addr)
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Subscriber not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to unsubscribe")
		s.respondError(w, http.StatusInternalServerError, "Failed to unsubscribe")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleRemoveSubscriber handles DELETE /api/subscribers/{id}
func (s *Server) handleRemoveSubscriber(w http.ResponseWriter, r *http.Request) {
	err := s.db.Subscribers().Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, persistence.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Subscriber not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to remove subscriber")
		s.respondError(w, http.StatusInternalServerError, "Failed to remove subscriber")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type createWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	reg := s.webhooks.Register(req.URL, req.Events)
	s.log.Infow("webhook registered", "id", reg.ID, "url", reg.URL, "events", reg.Events)
	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.webhooks.List())
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if !s.webhooks.Deregister(id) {
		s.writeError(w, http.StatusNotFound, errors.New("no such webhook"))
		return
	}
	s.log.Infow("webhook deregistered", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

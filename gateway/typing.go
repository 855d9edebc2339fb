package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) startTyping(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.sendTyping(w, r, ps, false)
}

func (s *Server) stopTyping(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.sendTyping(w, r, ps, true)
}

func (s *Server) sendTyping(w http.ResponseWriter, r *http.Request, ps httprouter.Params, stop bool) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	body["stop"] = stop
	s.rpcNoContent(w, "sendTyping", body)
}

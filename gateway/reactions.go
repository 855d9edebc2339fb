package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) sendReaction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcCreated(w, "sendReaction", body)
}

func (s *Server) removeReaction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcNoContent(w, "removeReaction", body)
}

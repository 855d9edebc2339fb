package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) createPoll(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcCreated(w, "sendPoll", body)
}

func (s *Server) votePoll(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcOK(w, "sendPollVote", body)
}

func (s *Server) closePoll(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcOK(w, "closePoll", body)
}

package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) globalConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.rpcOK(w, "getConfiguration", map[string]any{})
}

func (s *Server) setGlobalConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcNoContent(w, "setConfiguration", body)
}

func (s *Server) accountConfig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "getAccountSettings", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) setAccountConfig(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcNoContent(w, "setAccountSettings", body)
}

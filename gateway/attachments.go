package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.rpcOK(w, "listAttachments", map[string]any{})
}

func (s *Server) getAttachment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "getAttachment", map[string]any{"id": ps.ByName("attachment")})
}

func (s *Server) deleteAttachment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcNoContent(w, "deleteAttachment", map[string]any{"id": ps.ByName("attachment")})
}

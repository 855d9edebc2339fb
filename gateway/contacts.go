package gateway

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listContacts", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) getContact(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listContacts", map[string]any{
		"account":   ps.ByName("number"),
		"recipient": []string{ps.ByName("recipient")},
	})
}

func (s *Server) updateContact(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Name       *string `json:"name"`
		Expiration *uint64 `json:"expiration"`
		Recipient  *string `json:"recipient"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{"account": ps.ByName("number")}
	if body.Name != nil {
		params["name"] = *body.Name
	}
	if body.Expiration != nil {
		params["expiration"] = *body.Expiration
	}
	if body.Recipient != nil {
		params["recipient"] = []string{*body.Recipient}
	}
	s.rpcOK(w, "updateContact", params)
}

func (s *Server) syncContacts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "sendContacts", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) contactAvatar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeError(w, http.StatusNotImplemented, errors.New("avatar retrieval not yet implemented"))
}

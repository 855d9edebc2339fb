package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Name         *string `json:"name"`
		About        *string `json:"about"`
		Base64Avatar *string `json:"base64_avatar"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{"account": ps.ByName("number")}
	if body.Name != nil {
		params["given-name"] = *body.Name
	}
	if body.About != nil {
		params["about"] = *body.About
	}
	if body.Base64Avatar != nil {
		params["avatar"] = *body.Base64Avatar
	}
	s.rpcOK(w, "updateProfile", params)
}

package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listIdentities(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listIdentities", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) trustIdentity(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		TrustAllKnownKeys    *bool   `json:"trust_all_known_keys"`
		VerifiedSafetyNumber *string `json:"verified_safety_number"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{
		"account":   ps.ByName("number"),
		"recipient": []string{ps.ByName("numbertotrust")},
	}
	if body.TrustAllKnownKeys != nil && *body.TrustAllKnownKeys {
		params["trust-all-known-keys"] = true
	}
	if body.VerifiedSafetyNumber != nil {
		params["verified-safety-number"] = *body.VerifiedSafetyNumber
	}
	s.rpcOK(w, "trust", params)
}

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.rpcOK(w, "listAccounts", map[string]any{})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Captcha *string `json:"captcha"`
		Voice   *bool   `json:"voice"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{"account": ps.ByName("number")}
	if body.Captcha != nil {
		params["captcha"] = *body.Captcha
	}
	if body.Voice != nil {
		params["voice"] = *body.Voice
	}
	s.rpcNoContent(w, "register", params)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcNoContent(w, "verify", map[string]any{
		"account":          ps.ByName("number"),
		"verificationCode": ps.ByName("token"),
	})
}

func (s *Server) unregister(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcNoContent(w, "unregister", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) rateLimitChallenge(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Challenge string `json:"challenge"`
		Captcha   string `json:"captcha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcNoContent(w, "submitRateLimitChallenge", map[string]any{
		"account":   ps.ByName("number"),
		"challenge": body.Challenge,
		"captcha":   body.Captcha,
	})
}

func (s *Server) updateAccountSettings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		TrustMode *string `json:"trust_mode"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{"account": ps.ByName("number")}
	if body.TrustMode != nil {
		params["trustMode"] = *body.TrustMode
	}
	s.rpcNoContent(w, "updateAccountSettings", params)
}

func (s *Server) setPin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcNoContent(w, "setPin", map[string]any{"account": ps.ByName("number"), "pin": body.Pin})
}

func (s *Server) removePin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcNoContent(w, "removePin", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) setUsername(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcNoContent(w, "setUsername", map[string]any{"account": ps.ByName("number"), "username": body.Username})
}

func (s *Server) removeUsername(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcNoContent(w, "removeUsername", map[string]any{"account": ps.ByName("number")})
}

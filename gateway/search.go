package gateway

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// searchNumbers checks whether phone numbers are registered on Signal.
func (s *Server) searchNumbers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	recipients := []string{}
	for _, n := range strings.Split(r.URL.Query().Get("numbers"), ",") {
		if n != "" {
			recipients = append(recipients, n)
		}
	}
	s.rpcOK(w, "getUserStatus", map[string]any{
		"account":   ps.ByName("number"),
		"recipient": recipients,
	})
}

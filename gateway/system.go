package gateway

import (
	"net/http"
	"runtime"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) about(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"versions": map[string]string{
			"gateway": Version,
		},
		"build": map[string]string{
			"target": runtime.GOARCH,
			"os":     runtime.GOOS,
		},
	})
}

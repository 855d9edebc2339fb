package gateway

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// sseEvents streams events as server-sent events for consumers that can't
// hold a WebSocket.
func (s *Server) sseEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case raw, ok := <-sub.Events():
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

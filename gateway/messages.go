package gateway

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"nhooyr.io/websocket"
)

// sendV1 is the simple send endpoint, kept for compatibility.
func (s *Server) sendV1(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcCreated(w, "send", body)
}

// sendV2 is the extended send endpoint; it also feeds the sent counter.
func (s *Server) sendV2(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.callRPC(w, "send", body)
	if err != nil {
		return
	}
	s.metrics.IncMessagesSent()
	writeRawJSON(w, http.StatusCreated, result)
}

func (s *Server) remoteDelete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcOK(w, "remoteDelete", body)
}

// receiveWS streams every incoming event over a WebSocket. Each connection
// holds its own bus subscription; a slow reader only loses its own events.
func (s *Server) receiveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.log.Debugf("error accepting WebSocket conn: %s", err)
		return
	}

	s.metrics.AddWSClients(1)
	defer s.metrics.AddWSClients(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so we notice the peer closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	sub := s.bus.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case raw, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "gateway shutting down")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
				s.log.Debugf("error writing to WebSocket conn: %s", err)
				return
			}
		}
	}
}

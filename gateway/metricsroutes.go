package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// prometheusMetrics renders the counter snapshot in Prometheus text format.
// The counters themselves live in the metrics package; only this rendering
// belongs to the HTTP layer.
func (s *Server) prometheusMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap := s.metrics.Snapshot()

	var b strings.Builder
	counter := func(name, help string, value uint64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, value)
	}
	counter("signal_messages_sent_total", "Total messages sent", snap.MessagesSent)
	counter("signal_messages_received_total", "Total messages received", snap.MessagesReceived)
	counter("signal_rpc_calls_total", "Total JSON-RPC calls to signal-cli", snap.RPCCalls)
	counter("signal_rpc_errors_total", "Total JSON-RPC errors", snap.RPCErrors)
	fmt.Fprintf(&b, "# HELP signal_ws_clients_active Active WebSocket clients\n# TYPE signal_ws_clients_active gauge\nsignal_ws_clients_active %d\n", snap.WSClients)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(b.String()))
}

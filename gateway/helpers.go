package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/signalgw/gateway/rpc"
)

// errorStatus maps a call error to an outward HTTP status. A timed-out
// gateway is not the same thing as a request the daemon rejected.
func errorStatus(err error) int {
	if errors.Is(err, rpc.ErrTimeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadRequest
}

// rpcOK calls the daemon and writes 200 with the JSON result.
func (s *Server) rpcOK(w http.ResponseWriter, method string, params any) {
	s.rpcStatus(w, method, params, http.StatusOK)
}

// rpcCreated calls the daemon and writes 201 with the JSON result.
func (s *Server) rpcCreated(w http.ResponseWriter, method string, params any) {
	s.rpcStatus(w, method, params, http.StatusCreated)
}

// rpcNoContent calls the daemon and writes 204, discarding the result.
func (s *Server) rpcNoContent(w http.ResponseWriter, method string, params any) {
	s.rpcStatus(w, method, params, http.StatusNoContent)
}

func (s *Server) rpcStatus(w http.ResponseWriter, method string, params any, success int) {
	result, err := s.callRPC(w, method, params)
	if err != nil {
		return
	}
	if success == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeRawJSON(w, success, result)
}

// callRPC runs the call and handles the error response; on error the
// handler has nothing left to do.
func (s *Server) callRPC(w http.ResponseWriter, method string, params any) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return nil, err
	}

	start := time.Now()
	result, err := s.rpc.Call(method, raw)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		status := errorStatus(err)
		s.log.Warnw("rpc", "method", method, "status", status, "error", err.Error(), "latency_ms", latency)
		s.writeError(w, status, err)
		return nil, err
	}
	s.log.Infow("rpc", "method", method, "latency_ms", latency)
	return result, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRawJSON(w, status, b)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// decodeBody reads an arbitrary JSON object body. An absent body yields an
// empty object, matching endpoints whose parameters are all optional.
func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return body, nil
}

// decodeInto decodes a JSON body into a typed struct, tolerating an absent
// body for endpoints whose fields are all optional.
func decodeInto(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// linkURI extracts the device linking URI from a startLink result, which is
// either a bare string or an object with a deviceLinkUri field.
func linkURI(result json.RawMessage) string {
	var uri string
	if err := json.Unmarshal(result, &uri); err == nil {
		return uri
	}
	var obj struct {
		DeviceLinkURI string `json:"deviceLinkUri"`
	}
	if err := json.Unmarshal(result, &obj); err == nil {
		return obj.DeviceLinkURI
	}
	return ""
}

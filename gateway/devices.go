package gateway

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) qrCodeLink(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params := map[string]any{}
	if name := r.URL.Query().Get("device_name"); name != "" {
		params["deviceName"] = name
	}
	s.rpcOK(w, "startLink", params)
}

// qrCodeLinkRaw returns the bare linking URI as plain text for callers that
// render the QR code themselves.
func (s *Server) qrCodeLinkRaw(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	params := map[string]any{}
	if name := r.URL.Query().Get("device_name"); name != "" {
		params["deviceName"] = name
	}
	result, err := s.callRPC(w, "startLink", params)
	if err != nil {
		return
	}
	uri := linkURI(result)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(uri))
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listDevices", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) linkDevice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		URI        string  `json:"uri"`
		DeviceName *string `json:"device_name"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{"account": ps.ByName("number"), "uri": body.URI}
	if body.DeviceName != nil {
		params["deviceName"] = *body.DeviceName
	}
	s.rpcNoContent(w, "finishLink", params)
}

// removeDevice handles both DELETE /v1/devices/:number/:device_id and the
// local-data variant, which shares the same wildcard slot.
func (s *Server) removeDevice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	number := ps.ByName("number")
	deviceID := ps.ByName("device_id")

	if deviceID == "local-data" {
		s.rpcNoContent(w, "deleteLocalAccountData", map[string]any{"account": number})
		return
	}

	id, err := strconv.ParseInt(deviceID, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcNoContent(w, "removeDevice", map[string]any{"account": number, "deviceId": id})
}

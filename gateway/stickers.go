package gateway

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listStickerPacks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listStickerPacks", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) installStickerPack(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body["account"] = ps.ByName("number")
	s.rpcCreated(w, "uploadStickerPack", body)
}

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type groupPermissions struct {
	AddMembers  *string `json:"add_members"`
	EditDetails *string `json:"edit_details"`
}

func (p *groupPermissions) apply(params map[string]any) {
	if p == nil {
		return
	}
	if p.AddMembers != nil {
		params["set-permission-add-member"] = *p.AddMembers
	}
	if p.EditDetails != nil {
		params["set-permission-edit-details"] = *p.EditDetails
	}
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listGroups", map[string]any{"account": ps.ByName("number")})
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "listGroups", map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
	})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Name        string            `json:"name"`
		Members     []string          `json:"members"`
		Description *string           `json:"description"`
		Permissions *groupPermissions `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{
		"account": ps.ByName("number"),
		"name":    body.Name,
		"member":  body.Members,
	}
	if body.Description != nil {
		params["description"] = *body.Description
	}
	body.Permissions.apply(params)
	s.rpcCreated(w, "updateGroup", params)
}

func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Name         *string           `json:"name"`
		Description  *string           `json:"description"`
		Base64Avatar *string           `json:"base64_avatar"`
		Expiration   *uint64           `json:"expiration"`
		Permissions  *groupPermissions `json:"permissions"`
	}
	if err := decodeInto(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	params := map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
	}
	if body.Name != nil {
		params["name"] = *body.Name
	}
	if body.Description != nil {
		params["description"] = *body.Description
	}
	if body.Base64Avatar != nil {
		params["avatar"] = *body.Base64Avatar
	}
	if body.Expiration != nil {
		params["expiration"] = *body.Expiration
	}
	body.Permissions.apply(params)
	s.rpcOK(w, "updateGroup", params)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "quitGroup", map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
		"delete":   true,
	})
}

func (s *Server) groupAvatar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeError(w, http.StatusNotImplemented, errors.New("group avatar retrieval not yet implemented"))
}

func (s *Server) groupMembership(w http.ResponseWriter, r *http.Request, ps httprouter.Params, bodyKey, paramKey string) {
	var body map[string][]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rpcOK(w, "updateGroup", map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
		paramKey:   body[bodyKey],
	})
}

func (s *Server) addGroupMembers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.groupMembership(w, r, ps, "members", "addMember")
}

func (s *Server) removeGroupMembers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.groupMembership(w, r, ps, "members", "removeMember")
}

func (s *Server) addGroupAdmins(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.groupMembership(w, r, ps, "admins", "addAdmin")
}

func (s *Server) removeGroupAdmins(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.groupMembership(w, r, ps, "admins", "removeAdmin")
}

func (s *Server) joinGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "joinGroup", map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
	})
}

func (s *Server) quitGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "quitGroup", map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
	})
}

func (s *Server) blockGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.rpcOK(w, "block", map[string]any{
		"account":  ps.ByName("number"),
		"group-id": ps.ByName("groupid"),
	})
}

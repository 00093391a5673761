package host

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"squadcore/internal/core"
)

// ActorRequest creates an actor prototype.
type ActorRequest struct {
	ID     string           `json:"id,omitempty"`
	Name   string           `json:"name"`
	Kind   core.ActorKind   `json:"kind"`
	System core.ActorSystem `json:"system"`
}

// MutationResponse wraps an entity with the rule warnings of its transaction.
type MutationResponse struct {
	Data       any              `json:"data"`
	Violations []core.Violation `json:"violations,omitempty"`
}

func (s *Server) handleListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := s.svc.ListActors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actors)
}

func (s *Server) handleCreateActor(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.Kind.Valid() {
		writeError(w, badRequest{errors.New("unknown kind " + string(req.Kind))})
		return
	}
	actor, res, err := s.svc.CreateActor(r.Context(), core.Actor{
		Base:   core.Base{ID: req.ID},
		Name:   req.Name,
		Kind:   req.Kind,
		System: req.System,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MutationResponse{Data: actor, Violations: res.Violations})
}

func (s *Server) handlePlaceToken(w http.ResponseWriter, r *http.Request) {
	var at core.Placement
	if err := decodeJSON(r, &at); err != nil {
		writeError(w, err)
		return
	}
	tok, res, err := s.svc.PlaceToken(r.Context(), mux.Vars(r)["id"], at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MutationResponse{Data: tok, Violations: res.Violations})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.svc.ListTokens(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	tok, err := s.svc.GetToken(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var patch core.TokenPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.UpdateToken(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveToken(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveToken(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HoverRequest reports the pointer entering or leaving a token.
type HoverRequest struct {
	Hovered bool `json:"hovered"`
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	var req HoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	marks, err := s.svc.HoverToken(r.Context(), mux.Vars(r)["id"], req.Hovered)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, marks)
}

func (s *Server) writeSquad(w http.ResponseWriter, view core.SquadView, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetSquad(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetSquad(r.Context(), mux.Vars(r)["member"])
	s.writeSquad(w, view, err)
}

// MemberRequest names the token to recruit.
type MemberRequest struct {
	TokenID string `json:"token_id"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.AddMember(r.Context(), mux.Vars(r)["member"], req.TokenID)
	s.writeSquad(w, view, err)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.svc.RemoveMember(r.Context(), vars["member"], vars["target"])
	s.writeSquad(w, view, err)
}

// CaptainRequest names the selected captain; empty means nothing selected.
type CaptainRequest struct {
	CaptainID string `json:"captain_id"`
}

func (s *Server) handleAssignCaptain(w http.ResponseWriter, r *http.Request) {
	var req CaptainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.AssignCaptain(r.Context(), mux.Vars(r)["member"], req.CaptainID)
	s.writeSquad(w, view, err)
}

func (s *Server) handleRemoveCaptain(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.RemoveCaptain(r.Context(), mux.Vars(r)["member"])
	s.writeSquad(w, view, err)
}

// StaminaRequest changes the shared pool: Delta is added, or Value is set.
type StaminaRequest struct {
	Delta *int `json:"delta,omitempty"`
	Value *int `json:"value,omitempty"`
}

func (s *Server) handleStamina(w http.ResponseWriter, r *http.Request) {
	var req StaminaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	member := mux.Vars(r)["member"]
	switch {
	case req.Delta != nil && req.Value != nil:
		writeError(w, badRequest{errors.New("delta and value are exclusive")})
	case req.Delta != nil:
		view, err := s.svc.ModifySquadStamina(r.Context(), member, *req.Delta)
		s.writeSquad(w, view, err)
	case req.Value != nil:
		view, err := s.svc.SetSquadStamina(r.Context(), member, *req.Value)
		s.writeSquad(w, view, err)
	default:
		writeError(w, badRequest{errors.New("delta or value required")})
	}
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	tok, err := s.svc.CloneMinion(r.Context(), mux.Vars(r)["member"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) handleCaptainEffects(w http.ResponseWriter, r *http.Request) {
	member := mux.Vars(r)["member"]
	if err := s.svc.ApplyCaptainEffects(r.Context(), member); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.GetSquad(r.Context(), member)
	s.writeSquad(w, view, err)
}

// VerifyResponse lists squad drift found on the scene.
type VerifyResponse struct {
	Consistent bool             `json:"consistent"`
	Violations []core.Violation `json:"violations"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	violations, err := s.svc.VerifySquads(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if violations == nil {
		violations = []core.Violation{}
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Consistent: len(violations) == 0, Violations: violations})
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.RegisteredPlugins())
}

// ArchiveRequest selects a scene to export or an archive key to import.
type ArchiveRequest struct {
	Scene string `json:"scene,omitempty"`
	Key   string `json:"key,omitempty"`
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := s.archive.List(r.Context(), r.URL.Query().Get("scene"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	info, err := s.archive.Export(r.Context(), req.Scene)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleImportArchive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	key := req.Key
	if key == "" {
		if req.Scene == "" {
			writeError(w, badRequest{errors.New("key or scene required")})
			return
		}
		var err error
		if key, err = s.archive.Latest(r.Context(), req.Scene); err != nil {
			writeError(w, err)
			return
		}
	}
	res, err := s.archive.Import(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	s.svc.Highlights().Clear()
	writeJSON(w, http.StatusOK, MutationResponse{Data: map[string]string{"key": key}, Violations: res.Violations})
}

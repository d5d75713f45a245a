package api

import (
	"encoding/json"
	"net/http"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/registry"
	"github.com/driftcast/driftcast/internal/netutil"
	"github.com/driftcast/driftcast/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

// explorerRequest is the POST /explorer body: a source track plus the
// exclusion/dampening filters the Explorer applies before scoring
// candidates.
type explorerRequest struct {
	SessionID           string   `json:"sessionId"`
	SourceID            string   `json:"sourceId"`
	ExcludeIDs          []string `json:"excludeIds,omitempty"`
	DampenArtistsAlbums []string `json:"dampenArtistsAlbums,omitempty"`
}

func (s *Server) handleExplorer(w http.ResponseWriter, r *http.Request) {
	var req explorerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	h, err := s.sessionByID(r, req.SessionID)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	sourceID := req.SourceID
	if sourceID == "" && h.Session.CurrentTrack != nil {
		sourceID = h.Session.CurrentTrack.ID
	}

	exclude := toSet(req.ExcludeIDs)
	dampen := toSet(req.DampenArtistsAlbums)

	snap, err := h.Engine.RequestSnapshot(sourceID, exclude, dampen)
	if err != nil {
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound)
		return
	}

	candidates := 0
	for _, dir := range snap.Directions {
		candidates += dir.TrackCount
	}
	direction := "none"
	if snap.NextTrack != nil {
		direction = snap.NextTrack.DirectionKey
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(telemetry.SessionAttributes(req.SessionID, sourceID, "", "")...)
	span.SetAttributes(telemetry.ExplorerAttributes(direction, candidates)...)
	respondJSON(w, http.StatusOK, snap)
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// nextTrackRequest is the POST /next-track body: the user's chosen track
// and the direction it was surfaced under.
type nextTrackRequest struct {
	SessionID string `json:"sessionId"`
	TrackID   string `json:"trackId"`
	Direction string `json:"direction"`
}

func (s *Server) handleNextTrack(w http.ResponseWriter, r *http.Request) {
	var req nextTrackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.TrackID == "" {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, "trackId is required")
		return
	}

	h, err := s.sessionByID(r, req.SessionID)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	status := h.Engine.CommitNextSelection(req.TrackID, req.Direction, model.OriginUser)
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(telemetry.SessionAttributes(req.SessionID, req.TrackID, "", string(model.OriginUser))...)
	span.SetAttributes(telemetry.CrossfadeAttributes(req.Direction, s.cfg.Crossfade.LeadTime.Milliseconds())...)
	respondJSON(w, http.StatusOK, map[string]any{"status": status})
}

// refreshRequest is the POST /refresh-sse body, naming one of the three
// supported resync stages.
type refreshRequest struct {
	SessionID string `json:"sessionId"`
	Stage     string `json:"stage"`
}

func (s *Server) handleRefreshSSE(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	h, err := s.sessionByID(r, req.SessionID)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	actor := netutil.ClientIP(r)
	if err := h.Engine.Refresh(req.Stage); err != nil {
		s.audit.SessionResyncError(actor, req.SessionID, err.Error())
		RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, err.Error())
		return
	}
	s.audit.SessionResync(actor, req.SessionID, req.Stage)
	w.WriteHeader(http.StatusNoContent)
}

type sessionOnlyRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleForceNext(w http.ResponseWriter, r *http.Request) {
	var req sessionOnlyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	h, err := s.sessionByID(r, req.SessionID)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	if err := h.Engine.ForceNext(); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, ErrSessionUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetDrift(w http.ResponseWriter, r *http.Request) {
	var req sessionOnlyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	h, err := s.sessionByID(r, req.SessionID)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	h.Engine.ResetOverride()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	mode := chi.URLParam(r, "mode")
	var req sessionOnlyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	h, err := s.sessionByID(r, req.SessionID)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	h.Engine.SetResolution(mode)
	w.WriteHeader(http.StatusNoContent)
}

// sessionByID resolves a session strictly by explicit id or cookie, with
// no fallback creation: these endpoints act on an existing session and a
// miss is always session-unavailable, never a fresh bootstrap.
func (s *Server) sessionByID(r *http.Request, explicitID string) (*registry.Handle, error) {
	if explicitID == "" {
		explicitID = sessionCookieValue(r)
	}
	h, _, err := s.registry.Resolve(explicitID, "", "")
	if err != nil {
		return nil, err
	}
	return h, nil
}

// decodeJSON decodes the request body into v, writing an invalid-argument
// response and returning false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, err.Error())
		return false
	}
	return true
}

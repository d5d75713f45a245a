package api

import (
	"net/http"
	"strconv"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/log"
	"github.com/driftcast/driftcast/internal/netutil"
	"github.com/driftcast/driftcast/internal/persistence/sqlite"
	"github.com/go-chi/chi/v5"
)

// handleSearch answers GET /search?q=&limit= by title/artist/album
// substring match over the Feature Index.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results := s.index.Search(q, limit)
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleDeepLinkTrack answers GET /{32-hex}: a shareable link to a track,
// seeding a new or resolved session on it and issuing a session cookie,
// identical in effect to "/" except the seed is explicit.
func (s *Server) handleDeepLinkTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	track, err := s.index.GetTrack(id)
	if err != nil {
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound)
		return
	}

	h, err := s.resolveOrCreate(r.Context(), r, "", func() (model.Track, error) {
		return track, nil
	})
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	issueSessionCookie(w, r, h.Session.ID)
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId":    h.Session.ID,
		"currentTrack": h.Session.CurrentTrack,
	})
}

// handleDeepLinkSession answers GET /{32-hex}/{32-hex}: two track ids,
// current then forced next. It always seeds a brand new ephemeral
// session on the first id (never resolves an existing one — this is a
// one-shot share link, not a returning-client lookup) and immediately
// queues the second id as its next selection, so the trajectory that
// plays is exactly the one the link encodes.
func (s *Server) handleDeepLinkSession(w http.ResponseWriter, r *http.Request) {
	currentID := chi.URLParam(r, "id")
	nextID := chi.URLParam(r, "nextId")

	current, err := s.index.GetTrack(currentID)
	if err != nil {
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound)
		return
	}
	if _, err := s.index.GetTrack(nextID); err != nil {
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound)
		return
	}

	clientIP := netutil.ClientIP(r)
	h, err := s.registry.Create(r.Context(), current, "", clientIP, true)
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}
	h.Engine.CommitNextSelection(nextID, "", model.OriginUser)

	issueSessionCookie(w, r, h.Session.ID)
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId":    h.Session.ID,
		"currentTrack": h.Session.CurrentTrack,
	})
}

// nowPlayingEntry is one row of the public now-playing roster: no
// internal resolution-path detail, just what is audible right now.
type nowPlayingEntry struct {
	SessionID    string `json:"sessionId"`
	CurrentTrack any    `json:"currentTrack,omitempty"`
	AudioClients int    `json:"audioClients"`
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	handles := s.registry.List()
	out := make([]nowPlayingEntry, 0, len(handles))
	for _, h := range handles {
		if h.Session.AudioClientCount == 0 {
			continue
		}
		out = append(out, nowPlayingEntry{
			SessionID:    h.Session.ID,
			CurrentTrack: h.Session.CurrentTrack,
			AudioClients: h.Session.AudioClientCount,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// handleInternalSessions is the operator-facing counterpart to
// now-playing: every session regardless of listener count, plus state
// and client counts, for debugging a stuck registry.
func (s *Server) handleInternalSessions(w http.ResponseWriter, r *http.Request) {
	handles := s.registry.List()
	type entry struct {
		SessionID    string `json:"sessionId"`
		State        string `json:"state"`
		AudioClients int    `json:"audioClients"`
		EventClients int    `json:"eventClients"`
		Fingerprint  string `json:"fingerprint,omitempty"`
	}
	out := make([]entry, 0, len(handles))
	for _, h := range handles {
		out = append(out, entry{
			SessionID:    h.Session.ID,
			State:        string(h.Session.State),
			AudioClients: h.Session.AudioClientCount,
			EventClients: h.Session.EventClientCount,
			Fingerprint:  h.Session.Fingerprint,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": out, "total": len(out)})
}

func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"logs": log.GetRecentLogs()})
}

type setLogLevelRequest struct {
	Level string `json:"level"`
}

// handleSetLogLevel answers POST /internal/log-level, letting an operator
// raise verbosity on a live daemon without a restart. The change and who
// made it are recorded via log.AuditInfo regardless of the level in
// effect, so turning logging down never hides that it happened.
func (s *Server) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req setLogLevelRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	principal := netutil.ClientIP(r)
	if err := log.SetLevel(r.Context(), principal, []string{"internal:log-level"}, req.Level); err != nil {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVerifyStorage answers GET /internal/verify-storage?mode=quick|full,
// running a SQLite integrity pragma against the playlist/ratings/play-stats
// database without taking the daemon offline, so an operator chasing a
// corruption report doesn't have to stop the process to check one.
func (s *Server) handleVerifyStorage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Persistence.DSN == "" {
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound, "no persistence store configured")
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "quick"
	}

	issues, err := sqlite.VerifyIntegrity(s.cfg.Persistence.DSN, mode)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, ErrInternal, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"healthy": len(issues) == 0,
		"issues":  issues,
	})
}

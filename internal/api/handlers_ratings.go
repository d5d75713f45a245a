package api

import "net/http"

// rateRequest is the POST /rate body: a thin, out-of-core signal distinct
// from anything the Session Engine's actor touches. score is a signed
// preference (-1 dislike, 0 clear, 1 like).
type rateRequest struct {
	TrackID string `json:"trackId"`
	Score   int    `json:"score"`
}

func (s *Server) handleRateTrack(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.TrackID == "" {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, "trackId is required")
		return
	}
	if req.Score < -1 || req.Score > 1 {
		RespondError(w, r, http.StatusBadRequest, ErrInvalidArgument, "score must be -1, 0 or 1")
		return
	}
	if _, err := s.index.GetTrack(req.TrackID); err != nil {
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound)
		return
	}

	clientID := fingerprintFromRequest(r)
	if clientID == "" {
		clientID = sessionCookieValue(r)
	}

	if err := s.persist.RecordRating(req.TrackID, clientID, req.Score); err != nil {
		s.logFor(r.Context()).Warn().Err(err).Str("track", req.TrackID).Msg("failed to record rating")
		RespondError(w, r, http.StatusInternalServerError, ErrInternal)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

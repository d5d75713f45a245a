package api

import (
	"net/http"
	"strings"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/netutil"
)

// handleIndex seeds or resolves a session from plain "/" and returns a
// minimal shell response carrying the resolved session id. Real clients
// are expected to fetch /stream and /events from here; this endpoint's
// only job is session bootstrap plus cookie issuance.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	h, err := s.resolveOrCreate(r.Context(), r, "", func() (model.Track, error) {
		t, ok := s.index.RandomTrack()
		if !ok {
			return model.Track{}, ErrSourceNotFound
		}
		return t, nil
	})
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	issueSessionCookie(w, r, h.Session.ID)
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId":   h.Session.ID,
		"currentTrack": h.Session.CurrentTrack,
	})
}

// pcmSink adapts an http.ResponseWriter into a ports.AudioSink, flushing
// after every write so the crossfade mixer's PCM frames reach the client
// without buffering delay.
type pcmSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newPCMSink(w http.ResponseWriter) *pcmSink {
	f, _ := w.(http.Flusher)
	return &pcmSink{w: w, flusher: f}
}

func (p *pcmSink) WritePCM(frame []byte) error {
	if _, err := p.w.Write(frame); err != nil {
		return err
	}
	if p.flusher != nil {
		p.flusher.Flush()
	}
	return nil
}

// handleStream attaches the caller as an audio sink on the resolved
// session's mixer and blocks, copying PCM frames to the response, until
// the client disconnects or the session is destroyed. HEAD requests
// resolve the session and answer headers only, without attaching.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	h, err := s.resolveOrCreate(r.Context(), r, r.URL.Query().Get("id"), func() (model.Track, error) {
		t, ok := s.index.RandomTrack()
		if !ok {
			return model.Track{}, ErrSourceNotFound
		}
		return t, nil
	})
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/pcm")
	w.Header().Set("Cache-Control", "no-store")
	issueSessionCookie(w, r, h.Session.ID)

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	if !s.streamRate.Allow(netutil.ClientIP(r), "stream") {
		RespondError(w, r, http.StatusTooManyRequests, ErrInvalidArgument, "stream rate limit exceeded")
		return
	}

	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	sink := newPCMSink(w)
	id, err := h.Engine.AttachAudioClient(sink)
	if err != nil {
		s.logFor(r.Context()).Warn().Err(err).Msg("attach audio client failed")
		return
	}
	defer h.Engine.DetachAudioClient(id)

	<-r.Context().Done()
}

// handleEvents streams newline-delimited JSON heartbeat frames over a
// long-lived connection (server-sent-events framing without the "data: "
// envelope, since driftcast clients read raw JSON lines).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	h, err := s.resolveOrCreate(r.Context(), r, r.URL.Query().Get("id"), func() (model.Track, error) {
		t, ok := s.index.RandomTrack()
		if !ok {
			return model.Track{}, ErrSourceNotFound
		}
		return t, nil
	})
	if err != nil {
		s.respondSessionError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(w, r, http.StatusInternalServerError, ErrInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	issueSessionCookie(w, r, h.Session.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &eventSink{w: w, flusher: flusher}
	id := h.Engine.AttachEventClient(sink)
	defer h.Engine.DetachEventClient(id)

	<-r.Context().Done()
}

// eventSink writes one JSON frame per line and flushes immediately so
// heartbeat cadence is visible to the client in near real time.
type eventSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *eventSink) WriteEvent(frame []byte) error {
	if _, err := e.w.Write(frame); err != nil {
		return err
	}
	if _, err := e.w.Write([]byte("\n")); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// handleDeprecatedSSE answers the legacy /sse path with an RFC 8594
// deprecation response instead of a bare 404, pointing callers at /events.
func (s *Server) handleDeprecatedSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Deprecation", "true")
	w.Header().Set("Link", `</events>; rel="successor-version"`)
	RespondError(w, r, http.StatusGone, ErrDeprecatedEndpoint)
}

// respondSessionError maps a resolution failure to the right HTTP status:
// a fingerprint miss is a 404 with no fallback, anything else that makes
// it this far is a session-unavailable 503.
func (s *Server) respondSessionError(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "fingerprint-not-found"):
		RespondError(w, r, http.StatusNotFound, ErrFingerprintNotFound)
	case strings.Contains(msg, "source-not-found"):
		RespondError(w, r, http.StatusNotFound, ErrSourceNotFound)
	default:
		s.logFor(r.Context()).Warn().Err(err).Msg("session resolution failed")
		RespondError(w, r, http.StatusServiceUnavailable, ErrSessionUnavailable)
	}
}

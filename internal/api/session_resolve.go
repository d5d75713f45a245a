package api

import (
	"context"
	"net/http"
	"time"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/domain/session/registry"
	"github.com/driftcast/driftcast/internal/netutil"
)

const sessionCookieName = "driftcast_session"

// fingerprintFromRequest reads the client-chosen session fingerprint, a
// stable identifier the client persists itself (e.g. in local storage) and
// that survives a cookie being cleared. The cookie is a secondary, purely
// server-issued convenience.
func fingerprintFromRequest(r *http.Request) string {
	if fp := r.Header.Get("X-Driftcast-Fingerprint"); fp != "" {
		return fp
	}
	return r.URL.Query().Get("fingerprint")
}

func sessionCookieValue(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// issueSessionCookie stamps the resolved session id on the response so a
// subsequent request from the same browser resolves by explicit id
// without needing the fingerprint header.
func issueSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int((24 * time.Hour).Seconds()),
	})
}

// resolveOrCreate gathers the explicit id, fingerprint and client IP off
// the request, delegates to the registry, and seeds a brand new session
// on a registry miss. A fingerprint miss is a hard failure (no silent
// fallback to a fresh session); every other miss falls through to
// Registry.Create seeded by seed.
func (s *Server) resolveOrCreate(ctx context.Context, r *http.Request, explicitID string, seed func() (model.Track, error)) (*registry.Handle, error) {
	fingerprint := fingerprintFromRequest(r)
	clientIP := netutil.ClientIP(r)

	if explicitID == "" {
		explicitID = sessionCookieValue(r)
	}

	h, _, err := s.registry.Resolve(explicitID, fingerprint, clientIP)
	if err == nil {
		return h, nil
	}
	if fingerprint != "" {
		// Resolve already distinguishes a fingerprint miss by returning a
		// "fingerprint-not-found"-wrapped error; propagate it verbatim so
		// the handler answers 404 instead of silently starting a new
		// session under a fingerprint the client expects to be bound.
		return nil, err
	}

	track, seedErr := seed()
	if seedErr != nil {
		return nil, seedErr
	}
	return s.registry.Create(ctx, track, fingerprint, clientIP, fingerprint == "")
}

package api

import (
	"net/http"

	"github.com/driftcast/driftcast/internal/auth"
	"github.com/driftcast/driftcast/internal/netutil"
)

// requireAdminToken gates the operator-facing /internal/* endpoints
// behind a bearer token. An empty AdminToken disables the check, which is
// only appropriate for local/dev use — production deployments are
// expected to set one. Every attempt is audit-logged: missing token,
// rejected token, or success.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.API.AdminToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		remoteAddr := netutil.ClientIP(r)
		if auth.ExtractToken(r, false) == "" {
			s.audit.AuthMissing(remoteAddr, r.URL.Path)
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		if !auth.AuthorizeRequest(r, s.cfg.API.AdminToken, false) {
			s.audit.AuthFailure(remoteAddr, r.URL.Path, "invalid admin token")
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		s.audit.AuthSuccess(remoteAddr, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

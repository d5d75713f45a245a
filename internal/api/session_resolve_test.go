package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintFromRequestPrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?fingerprint=from-query", nil)
	req.Header.Set("X-Driftcast-Fingerprint", "from-header")

	assert.Equal(t, "from-header", fingerprintFromRequest(req))
}

func TestFingerprintFromRequestFallsBackToQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?fingerprint=from-query", nil)
	assert.Equal(t, "from-query", fingerprintFromRequest(req))
}

func TestSessionCookieValueMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", sessionCookieValue(req))
}

func TestIssueSessionCookieNotSecureOverPlainHTTP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	issueSessionCookie(rr, req, "abc123")

	cookies := rr.Result().Cookies()
	var got *http.Cookie
	for _, c := range cookies {
		if c.Name == sessionCookieName {
			got = c
		}
	}
	if assert.NotNil(t, got) {
		assert.Equal(t, "abc123", got.Value)
		assert.True(t, got.HttpOnly)
		assert.False(t, got.Secure, "plain HTTP request should not set Secure")
		assert.Equal(t, http.SameSiteStrictMode, got.SameSite)
	}
}

func TestResolveOrCreateFingerprintMissNeverFallsBack(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?fingerprint=unknown-fingerprint", nil)
	seedCalled := false

	_, err := srv.resolveOrCreate(req.Context(), req, "", func() (model.Track, error) {
		seedCalled = true
		return model.Track{}, nil
	})

	assert.Error(t, err)
	assert.False(t, seedCalled, "seed must never run when a fingerprint miss should be a hard 404")
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStreamHeadResolvesWithoutAttaching(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodHead, "/stream", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "audio/pcm", rr.Header().Get("Content-Type"))

	var found bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHandleDeprecatedSSE(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/sse", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("Deprecation"))
	assert.Equal(t, `</events>; rel="successor-version"`, rr.Header().Get("Link"))
}

func TestRespondSessionErrorMapsFingerprintMissTo404(t *testing.T) {
	srv := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	srv.respondSessionError(rr, req, assertableError{"fingerprint-not-found: not-found"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRespondSessionErrorMapsUnknownFailureTo503(t *testing.T) {
	srv := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	srv.respondSessionError(rr, req, assertableError{"boom"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type assertableError struct{ msg string }

func (e assertableError) Error() string { return e.msg }

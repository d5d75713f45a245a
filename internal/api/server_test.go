package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterStaticRoutesBeatHexParam(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	// "search" is not 32 hex characters, so in principle it could also
	// fail the {id:[a-f0-9]{32}} constraint on its own merits, but the
	// point here is that chi must never even attempt that match: a
	// static route always wins.
	req := httptest.NewRequest(http.MethodGet, "/search?q=a", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equalf(t, http.StatusOK, rr.Code, "GET %s", path)
	}
}

func TestRouterRejectsNonHexDeepLink(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/not-a-valid-hex-id", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMaxBodyBytesRejectsOversizedPayload(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.API.MaxPayloadBytes = 4
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/next-track", strings.NewReader(`{"sessionId":"x","trackId":"00000000000000000000000000000002"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalEndpointsOpenWithoutAdminToken(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/internal/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "empty AdminToken should disable the gate")
}

func TestInternalEndpointsRejectMissingToken(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.API.AdminToken = "s3cret"
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/internal/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestInternalEndpointsAcceptBearerToken(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.API.AdminToken = "s3cret"
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/internal/sessions", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleSetLogLevel(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rr := postJSON(t, router, "/internal/log-level", nil, setLogLevelRequest{Level: "debug"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandleSetLogLevelRejectsUnknownLevel(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rr := postJSON(t, router, "/internal/log-level", nil, setLogLevelRequest{Level: "not-a-level"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthAndReadyNeverGated(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.API.AdminToken = "s3cret"
	router := srv.Router()

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equalf(t, http.StatusOK, rr.Code, "GET %s should never require the admin token", path)
	}
}

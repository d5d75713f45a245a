package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorWritesStructuredBody(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(rr, req, http.StatusNotFound, ErrSourceNotFound)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, ErrSourceNotFound.Code, body.Code)
	assert.Equal(t, ErrSourceNotFound.Message, body.Message)
}

func TestRespondErrorIncludesOptionalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(rr, req, http.StatusBadRequest, ErrInvalidArgument, "limit must be positive")

	var body APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "limit must be positive", body.Details)
}

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRateTrack(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rr := postJSON(t, router, "/rate", nil, rateRequest{TrackID: "00000000000000000000000000000001", Score: 1})
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandleRateTrackUnknownTrack(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rr := postJSON(t, router, "/rate", nil, rateRequest{TrackID: "missing", Score: 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleRateTrackRejectsOutOfRangeScore(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rr := postJSON(t, router, "/rate", nil, rateRequest{TrackID: "00000000000000000000000000000001", Score: 5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRateTrackRequiresTrackID(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	rr := postJSON(t, router, "/rate", nil, rateRequest{Score: 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

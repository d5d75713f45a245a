package api

import (
	"encoding/json"
	"net/http"

	"github.com/driftcast/driftcast/internal/domain/session/model"
	"github.com/driftcast/driftcast/internal/log"
)

// APIError is the structured body of every non-2xx response driftcast
// sends. Code is one of model.ReasonCode's values so clients can branch
// on it without parsing Message.
type APIError struct {
	Code      model.ReasonCode `json:"code"`
	Message   string           `json:"message"`
	RequestID string           `json:"requestId"`
	Details   any              `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// A handler picks the error matching what went wrong and passes it to
// RespondError with the matching HTTP status.
var (
	ErrSourceNotFound      = &APIError{Code: model.RSourceNotFound, Message: "the requested track id is not in the feature index"}
	ErrFingerprintNotFound = &APIError{Code: model.RFingerprintNotFound, Message: "no session is bound to this fingerprint"}
	ErrSessionUnavailable  = &APIError{Code: model.RSessionUnavailable, Message: "the session could not be resolved or created"}
	ErrDecodeFailed        = &APIError{Code: model.RDecodeFailed, Message: "the track could not be decoded"}
	ErrPayloadTooLarge     = &APIError{Code: model.RPayloadTooLarge, Message: "request body exceeds the maximum allowed size"}
	ErrInvalidArgument     = &APIError{Code: model.RInvalidArgument, Message: "request parameters are invalid"}
	ErrDeprecatedEndpoint  = &APIError{Code: model.RDeprecatedEndpoint, Message: "this endpoint has been removed, use its replacement"}
	ErrInternal            = &APIError{Code: model.ReasonCode("internal"), Message: "an internal error occurred"}
	ErrUnauthorized        = &APIError{Code: model.ReasonCode("unauthorized"), Message: "a valid admin token is required for this endpoint"}
)

// RespondError writes a structured JSON error body, stamping the
// request's correlation id so it can be matched against server logs.
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError, details ...any) {
	resp := &APIError{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		RequestID: log.RequestIDFromContext(r.Context()),
	}
	if len(details) > 0 {
		resp.Details = details[0]
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, apiErr.Message, statusCode)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for driftcast.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across driftcast.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Session attributes
	SessionIDKey     = "session.id"
	SessionTrackKey  = "session.track_id"
	SessionStateKey  = "session.state"
	SessionOriginKey = "session.origin"

	// Crossfade/mixer attributes
	CrossfadeDirectionKey  = "crossfade.direction"
	CrossfadeLeadTimeMsKey = "crossfade.lead_time_ms"

	// Explorer attributes
	ExplorerDirectionKey  = "explorer.direction"
	ExplorerCandidatesKey = "explorer.candidates"

	// Latent service attributes
	LatentRequestKindKey = "latent.request_kind"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates span attributes identifying a session and the
// track/state/origin it was acted on at the time of the call. origin names
// what triggered the action (e.g. model.OriginUser, model.OriginDeck).
func SessionAttributes(sessionID, trackID, state, origin string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if trackID != "" {
		attrs = append(attrs, attribute.String(SessionTrackKey, trackID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(SessionStateKey, state))
	}
	if origin != "" {
		attrs = append(attrs, attribute.String(SessionOriginKey, origin))
	}
	return attrs
}

// ExplorerAttributes creates span attributes for a direction-search request.
func ExplorerAttributes(direction string, candidates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ExplorerDirectionKey, direction),
		attribute.Int(ExplorerCandidatesKey, candidates),
	}
}

// CrossfadeAttributes creates span attributes for a mixer transition.
func CrossfadeAttributes(direction string, leadTimeMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CrossfadeDirectionKey, direction),
		attribute.Int64(CrossfadeLeadTimeMsKey, leadTimeMS),
	}
}

// LatentRequestAttributes creates span attributes for a call to the latent
// service subprocess.
func LatentRequestAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(LatentRequestKindKey, kind),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/api/v1/status", "http://localhost:8080/api/v1/status", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/v1/status")
	verifyAttribute(t, attrs, HTTPURLKey, "http://localhost:8080/api/v1/status")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		trackID   string
		state     string
		origin    string
		wantLen   int
	}{
		{
			name:      "all fields",
			sessionID: "sess-1",
			trackID:   "track-1",
			state:     "playing",
			origin:    "user",
			wantLen:   4,
		},
		{
			name:      "only session id",
			sessionID: "sess-1",
			trackID:   "",
			state:     "",
			origin:    "",
			wantLen:   1,
		},
		{
			name:      "empty fields",
			sessionID: "",
			trackID:   "",
			state:     "",
			origin:    "",
			wantLen:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := SessionAttributes(tt.sessionID, tt.trackID, tt.state, tt.origin)

			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}

			if tt.sessionID != "" {
				verifyAttribute(t, attrs, SessionIDKey, tt.sessionID)
			}
			if tt.trackID != "" {
				verifyAttribute(t, attrs, SessionTrackKey, tt.trackID)
			}
			if tt.state != "" {
				verifyAttribute(t, attrs, SessionStateKey, tt.state)
			}
			if tt.origin != "" {
				verifyAttribute(t, attrs, SessionOriginKey, tt.origin)
			}
		})
	}
}

func TestExplorerAttributes(t *testing.T) {
	attrs := ExplorerAttributes("faster", 12)

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, ExplorerDirectionKey, "faster")
	verifyIntAttribute(t, attrs, ExplorerCandidatesKey, 12)
}

func TestCrossfadeAttributes(t *testing.T) {
	attrs := CrossfadeAttributes("faster", 3500)

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, CrossfadeDirectionKey, "faster")
	verifyInt64Attribute(t, attrs, CrossfadeLeadTimeMsKey, 3500)
}

func TestLatentRequestAttributes(t *testing.T) {
	attrs := LatentRequestAttributes("explore")

	if len(attrs) != 1 {
		t.Fatalf("Expected 1 attribute, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, LatentRequestKindKey, "explore")
}

func TestJobAttributes(t *testing.T) {
	attrs := JobAttributes("catalog-refresh", "completed", 45000)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, JobTypeKey, "catalog-refresh")
	verifyAttribute(t, attrs, JobStatusKey, "completed")
	verifyInt64Attribute(t, attrs, JobDurationKey, 45000)
}

func TestErrorAttributes(t *testing.T) {
	err := errors.New("test error")
	attrs := ErrorAttributes(err, "network_error")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "network_error")
}

func TestAttributeKeys_Consistency(t *testing.T) {
	// Verify attribute keys follow OpenTelemetry conventions
	keys := []string{
		HTTPMethodKey,
		HTTPStatusCodeKey,
		HTTPRouteKey,
		SessionIDKey,
		ExplorerDirectionKey,
		JobTypeKey,
		ErrorKey,
	}

	for _, key := range keys {
		if key == "" {
			t.Errorf("Expected non-empty attribute key")
		}
	}
}

// Helper functions for attribute verification

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyInt64Attribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != expectedValue {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

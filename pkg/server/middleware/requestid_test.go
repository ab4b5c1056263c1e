package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"glim-hq/cards/pkg/telemetry/logging"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	wrapped := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generates request ID when not provided", "", false},
		{"uses provided request ID", "custom-request-id-12345", true},
		{"replaces ID with whitespace", "bad id", false},
		{"replaces ID with control characters", "id\nforged=1", false},
		{"replaces overlong ID", strings.Repeat("a", maxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			if got != seen {
				t.Errorf("header %q does not match context %q", got, seen)
			}
			if tt.wantSame {
				if got != tt.incoming {
					t.Errorf("Request ID = %v, want %v", got, tt.incoming)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("generated ID %q is not a UUID: %v", got, err)
			}
		})
	}
}

func TestRequestIDMiddleware_Unique(t *testing.T) {
	wrapped := RequestIDMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	seen := make(map[string]bool)
	for range 100 {
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		id := w.Header().Get(RequestIDHeader)
		if seen[id] {
			t.Fatalf("duplicate request ID %s", id)
		}
		seen[id] = true
	}
}

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the standard logger for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_ReusedAndTruncated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "lb-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "lb-123", seen)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 300))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, seen, maxRequestIDLen)
}

func TestGetters_EmptyContext(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetPoller(context.Background()))
}

func TestStructuredLogger_Poller(t *testing.T) {
	buf := captureLog(t)
	var seen string
	h := StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPoller(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.0.0.7", seen)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "10.0.0.7", entry["poller"])

	req.Header.Set("X-Client-ID", "elb")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "elb", seen)
}

func TestStructuredLogger(t *testing.T) {
	buf := captureLog(t)
	h := RequestID(StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("false"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/health", entry["path"])
	assert.EqualValues(t, http.StatusServiceUnavailable, entry["status"])
	assert.EqualValues(t, 5, entry["bytes"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")

	LogEvent(ctx, "queue_inspect_failed", map[string]any{"kind": "timeout"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "queue_inspect_failed", entry["event"])
	assert.Equal(t, "timeout", entry["kind"])
	assert.Equal(t, "req-1", entry["request_id"])
}

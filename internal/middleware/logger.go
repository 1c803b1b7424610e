package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const PollerKey ctxKey = "poller"

// StructuredLogger is a chi middleware that outputs JSON-structured access logs.
// It also records the poller identity so LogEvent lines can carry it.
func StructuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		poller := pollerID(r)
		r = r.WithContext(context.WithValue(r.Context(), PollerKey, poller))

		next.ServeHTTP(ww, r)

		writeJSON(map[string]any{
			"ts":         start.Format(time.RFC3339),
			"request_id": GetRequestID(r.Context()),
			"poller":     poller,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
	})
}

// LogEvent writes a structured JSON log line with request_id and poller from context.
func LogEvent(ctx context.Context, event string, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["request_id"] = GetRequestID(ctx)
	fields["poller"] = GetPoller(ctx)
	fields["event"] = event
	fields["ts"] = time.Now().Format(time.RFC3339)
	writeJSON(fields)
}

// GetPoller returns the poller identity recorded by StructuredLogger.
func GetPoller(ctx context.Context) string {
	if v, ok := ctx.Value(PollerKey).(string); ok {
		return v
	}
	return ""
}

// pollerID prefers a balancer-supplied X-Client-ID, else the remote host.
func pollerID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(fields map[string]any) {
	data, err := json.Marshal(fields)
	if err != nil {
		log.Printf("log marshal: %v", err)
		return
	}
	log.Println(string(data))
}

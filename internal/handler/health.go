package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ginkida/queue-probe/internal/admission"
	"github.com/ginkida/queue-probe/internal/inspector"
	"github.com/ginkida/queue-probe/internal/middleware"
)

// HealthHandler serves the capacity health check.
type HealthHandler struct {
	evaluator *admission.Evaluator
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(evaluator *admission.Evaluator) *HealthHandler {
	return &HealthHandler{evaluator: evaluator}
}

// Handle answers 200 "true" when the queue has headroom and 503 "false"
// otherwise. Inspection errors are logged, never returned to the client.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	v := h.evaluator.Evaluate(r.Context())

	if v.Err != nil {
		kind := inspector.Kind(v.Err)
		if errors.Is(v.Err, admission.ErrSourcePanic) {
			kind = "panic"
		}
		middleware.LogEvent(r.Context(), "queue_inspect_failed", map[string]any{
			"kind":  kind,
			"error": v.Err.Error(),
		})
	} else if !v.Admit {
		middleware.LogEvent(r.Context(), "admission_rejected", map[string]any{
			"depth":     v.Depth,
			"max":       v.Max,
			"threshold": v.Threshold,
		})
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(v.StatusCode())
	w.Write([]byte(strconv.FormatBool(v.Admit)))
}

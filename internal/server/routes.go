package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ginkida/queue-probe/internal/admission"
	"github.com/ginkida/queue-probe/internal/handler"
	mw "github.com/ginkida/queue-probe/internal/middleware"
)

// NewRouter creates the chi router with all routes registered.
func NewRouter(evaluator *admission.Evaluator) http.Handler {
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(mw.RequestID)        // 1. assign request ID
	r.Use(mw.StructuredLogger) // 2. poller identity + structured JSON logging
	r.Use(chimw.Recoverer)     // 3. panic recovery

	healthH := handler.NewHealthHandler(evaluator)

	// No chimw.Timeout here: the status command carries its own deadline.
	r.Get("/health", healthH.Handle)

	return r
}

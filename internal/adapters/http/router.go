package http

import (
	"log/slog"
	"net/http"
)

// NewRouter creates the HTTP router with all routes
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	// Refresh runs
	mux.HandleFunc("POST /update", h.Update)

	// Flip ranking
	mux.HandleFunc("GET /flips", h.BestFlips)

	// Items
	mux.HandleFunc("GET /items", h.SearchItems)
	mux.HandleFunc("GET /items/{id}", h.ItemDetail)

	// Operational status
	mux.HandleFunc("GET /status", h.Status)

	// Apply middleware chain (order matters: outer -> inner)
	var handler http.Handler = mux
	handler = ContentTypeMiddleware(handler)
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)

	return handler
}

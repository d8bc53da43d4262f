package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// Handler contains all HTTP handlers
type Handler struct {
	refreshSvc ports.RefreshService
	querySvc   ports.QueryService
	statsSvc   ports.StatsService
	official   ports.OrderBookSource
	logger     *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(
	refreshSvc ports.RefreshService,
	querySvc ports.QueryService,
	statsSvc ports.StatsService,
	official ports.OrderBookSource,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		refreshSvc: refreshSvc,
		querySvc:   querySvc,
		statsSvc:   statsSvc,
		official:   official,
		logger:     logger.With("component", "http_handler"),
	}
}

// Health returns service health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	sourceStatus := "healthy"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.official.Ping(checkCtx); err != nil {
		sourceStatus = "unhealthy"
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"source": sourceStatus,
	})
}

// UpdateRequest represents the request body for triggering a refresh run
type UpdateRequest struct {
	Mode string `json:"mode"`
	Days int    `json:"days"`

	// PricesOnly limits the run to the catalog refresh, skipping per-item
	// history and order books.
	PricesOnly bool `json:"prices_only"`
}

// Update triggers a refresh run and waits for its report
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req := UpdateRequest{Mode: string(domain.RunQuick)}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if m := r.URL.Query().Get("mode"); m != "" {
		req.Mode = m
	}

	var mode domain.RunMode
	switch strings.ToLower(req.Mode) {
	case string(domain.RunQuick), "":
		mode = domain.RunQuick
	case string(domain.RunFull):
		mode = domain.RunFull
	default:
		respondError(w, http.StatusBadRequest, "mode must be quick or full")
		return
	}

	report, err := h.refreshSvc.Run(r.Context(), ports.RunOptions{
		Mode:        mode,
		Days:        req.Days,
		DeepRefresh: !req.PricesOnly,
	})
	if err != nil {
		h.logger.Error("refresh run failed", "mode", mode, "error", err)
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// BestFlips returns the ranked flip candidates
func (h *Handler) BestFlips(w http.ResponseWriter, r *http.Request) {
	q := ports.FlipQuery{Days: 1}

	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		days, err := strconv.Atoi(daysParam)
		if err != nil || (days != 1 && days != 7 && days != 30) {
			respondError(w, http.StatusBadRequest, "days must be 1, 7 or 30")
			return
		}
		q.Days = days
	}

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= 100 {
			q.Limit = l
		}
	}

	if profitParam := r.URL.Query().Get("min_profit"); profitParam != "" {
		if p, err := strconv.ParseFloat(profitParam, 64); err == nil && p > 0 {
			q.MinProfit = p
		}
	}

	if priceParam := r.URL.Query().Get("max_price"); priceParam != "" {
		if p, err := strconv.ParseInt(priceParam, 10, 64); err == nil && p > 0 {
			q.MaxPrice = p
		}
	}

	flips, err := h.querySvc.BestFlips(r.Context(), q)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"days":  q.Days,
		"count": len(flips),
		"flips": flips,
	})
}

// ItemDetail returns the full per-item view
func (h *Handler) ItemDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	detail, err := h.querySvc.ItemDetail(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// SearchItems finds items by name substring
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	items, err := h.querySvc.SearchItems(r.Context(), query)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query": query,
		"count": len(items),
		"items": items,
	})
}

// Status returns operational statistics
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsSvc.Stats(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      stats,
		"run_active": h.refreshSvc.Active(),
	})
}

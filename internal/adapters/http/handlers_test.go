package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpAdapter "github.com/gw2trader/tradepost/internal/adapters/http"
	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// Mock implementations for testing

type mockRefreshService struct {
	report  *domain.RunReport
	err     error
	lastRun ports.RunOptions
	active  bool
}

func (m *mockRefreshService) Run(ctx context.Context, opts ports.RunOptions) (*domain.RunReport, error) {
	m.lastRun = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func (m *mockRefreshService) Active() bool { return m.active }

type mockQueryService struct {
	flips  []domain.FlipResult
	detail *domain.ItemDetail
	items  []domain.Item
	err    error

	lastQuery ports.FlipQuery
}

func (m *mockQueryService) BestFlips(ctx context.Context, q ports.FlipQuery) ([]domain.FlipResult, error) {
	m.lastQuery = q
	return m.flips, m.err
}

func (m *mockQueryService) ItemDetail(ctx context.Context, itemID int) (*domain.ItemDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detail, nil
}

func (m *mockQueryService) SearchItems(ctx context.Context, query string) ([]domain.Item, error) {
	return m.items, m.err
}

type mockStatsService struct {
	stats *domain.Stats
	err   error
}

func (m *mockStatsService) Stats(ctx context.Context) (*domain.Stats, error) {
	return m.stats, m.err
}

func (m *mockStatsService) RecordRun(report *domain.RunReport, err error) {}

type mockOrderBookSource struct {
	pingErr error
}

func (m *mockOrderBookSource) FetchOrderBook(ctx context.Context, itemID int) (*domain.OrderBookSample, error) {
	return nil, domain.ErrNoOrderBook
}

func (m *mockOrderBookSource) FetchOrderBooks(ctx context.Context, itemIDs []int) (map[int]*domain.OrderBookSample, error) {
	return nil, nil
}

func (m *mockOrderBookSource) FetchItemInfo(ctx context.Context, itemIDs []int) (map[int]domain.ItemInfo, error) {
	return nil, nil
}

func (m *mockOrderBookSource) Ping(ctx context.Context) error { return m.pingErr }

func newTestRouter(refresh *mockRefreshService, query *mockQueryService, stats *mockStatsService, source *mockOrderBookSource) http.Handler {
	if refresh == nil {
		refresh = &mockRefreshService{report: &domain.RunReport{State: domain.StateDone}}
	}
	if query == nil {
		query = &mockQueryService{}
	}
	if stats == nil {
		stats = &mockStatsService{stats: &domain.Stats{}}
	}
	if source == nil {
		source = &mockOrderBookSource{}
	}
	logger := slog.Default()
	handler := httpAdapter.NewHandler(refresh, query, stats, source, logger)
	return httpAdapter.NewRouter(handler, logger)
}

func TestHandler_Update(t *testing.T) {
	t.Run("triggers a quick run by default", func(t *testing.T) {
		refresh := &mockRefreshService{
			report: &domain.RunReport{Mode: domain.RunQuick, State: domain.StateDone, Succeeded: 42},
		}
		router := newTestRouter(refresh, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/update", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.RunQuick, refresh.lastRun.Mode)
		assert.True(t, refresh.lastRun.DeepRefresh)

		var report domain.RunReport
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
		assert.Equal(t, 42, report.Succeeded)
	})

	t.Run("accepts full mode in body", func(t *testing.T) {
		refresh := &mockRefreshService{report: &domain.RunReport{State: domain.StateDone}}
		router := newTestRouter(refresh, nil, nil, nil)

		body := bytes.NewBufferString(`{"mode": "full", "days": 7}`)
		req := httptest.NewRequest(http.MethodPost, "/update", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.RunFull, refresh.lastRun.Mode)
		assert.Equal(t, 7, refresh.lastRun.Days)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		router := newTestRouter(nil, nil, nil, nil)

		body := bytes.NewBufferString(`{"mode": "turbo"}`)
		req := httptest.NewRequest(http.MethodPost, "/update", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conflict while a run is active", func(t *testing.T) {
		refresh := &mockRefreshService{err: domain.ErrRunInProgress}
		router := newTestRouter(refresh, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/update", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("source outage maps to service unavailable", func(t *testing.T) {
		refresh := &mockRefreshService{err: domain.ErrSourceUnavailable}
		router := newTestRouter(refresh, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/update", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandler_BestFlips(t *testing.T) {
	t.Run("passes query parameters through", func(t *testing.T) {
		query := &mockQueryService{
			flips: []domain.FlipResult{
				{Item: domain.Item{ID: 19721, Name: "Glob of Ectoplasm"}},
			},
		}
		router := newTestRouter(nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/flips?days=7&limit=5&min_profit=10&max_price=5000", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 7, query.lastQuery.Days)
		assert.Equal(t, 5, query.lastQuery.Limit)
		assert.Equal(t, 10.0, query.lastQuery.MinProfit)
		assert.Equal(t, int64(5000), query.lastQuery.MaxPrice)

		var resp struct {
			Days  int                 `json:"days"`
			Count int                 `json:"count"`
			Flips []domain.FlipResult `json:"flips"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 7, resp.Days)
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Flips, 1)
		assert.Equal(t, 19721, resp.Flips[0].Item.ID)
	})

	t.Run("rejects unsupported window", func(t *testing.T) {
		router := newTestRouter(nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/flips?days=14", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_ItemDetail(t *testing.T) {
	t.Run("returns the detail view", func(t *testing.T) {
		query := &mockQueryService{
			detail: &domain.ItemDetail{Item: domain.Item{ID: 19721, Name: "Glob of Ectoplasm"}},
		}
		router := newTestRouter(nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/items/19721", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var detail domain.ItemDetail
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
		assert.Equal(t, "Glob of Ectoplasm", detail.Item.Name)
	})

	t.Run("unknown item returns 404", func(t *testing.T) {
		query := &mockQueryService{err: domain.ErrItemNotFound}
		router := newTestRouter(nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/items/999999", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non numeric id is rejected", func(t *testing.T) {
		router := newTestRouter(nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/items/ectoplasm", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_SearchItems(t *testing.T) {
	t.Run("finds items by name", func(t *testing.T) {
		query := &mockQueryService{
			items: []domain.Item{{ID: 19721, Name: "Glob of Ectoplasm"}},
		}
		router := newTestRouter(nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/items?q=ecto", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Query string        `json:"query"`
			Count int           `json:"count"`
			Items []domain.Item `json:"items"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ecto", resp.Query)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("missing query is rejected", func(t *testing.T) {
		router := newTestRouter(nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/items", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Status(t *testing.T) {
	stats := &mockStatsService{
		stats: &domain.Stats{
			TrackedItems:   27000,
			TotalSnapshots: 800000,
			RunSuccesses:   12,
			StoreStatus:    "healthy",
			SourceStatus:   "healthy",
		},
	}
	refresh := &mockRefreshService{active: true}
	router := newTestRouter(refresh, nil, stats, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats     domain.Stats `json:"stats"`
		RunActive bool         `json:"run_active"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 27000, resp.Stats.TrackedItems)
	assert.True(t, resp.RunActive)
}

func TestHandler_Health(t *testing.T) {
	t.Run("healthy when source responds", func(t *testing.T) {
		router := newTestRouter(nil, nil, nil, &mockOrderBookSource{})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp["status"])
	})

	t.Run("degraded when source is down", func(t *testing.T) {
		router := newTestRouter(nil, nil, nil, &mockOrderBookSource{pingErr: domain.ErrSourceUnavailable})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "degraded", resp["status"])
		assert.Equal(t, "unhealthy", resp["source"])
	})
}

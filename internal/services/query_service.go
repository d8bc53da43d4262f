package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/metrics"
	"github.com/gw2trader/tradepost/internal/ports"
)

const (
	defaultFlipLimit   = 10
	defaultSearchLimit = 25

	// candidateOverscan widens the ranked candidate scan so post-filtering
	// (vendor-blocked items, profit floor) still fills the requested limit.
	// When a window still comes up short the scan widens by the same factor
	// until the pool is exhausted or maxCandidateScan is reached.
	candidateOverscan = 4
	maxCandidateScan  = 10000
)

// QueryService implements the ports.QueryService interface. All answers
// are recomputed from stored snapshots and depth samples; the materialized
// score on the items row only orders the candidate scan.
type QueryService struct {
	itemRepo      ports.ItemRepository
	snapshotRepo  ports.SnapshotRepository
	orderBookRepo ports.OrderBookRepository
	logger        *slog.Logger
}

// NewQueryService creates a new query service
func NewQueryService(
	itemRepo ports.ItemRepository,
	snapshotRepo ports.SnapshotRepository,
	orderBookRepo ports.OrderBookRepository,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		itemRepo:      itemRepo,
		snapshotRepo:  snapshotRepo,
		orderBookRepo: orderBookRepo,
		logger:        logger.With("component", "query_service"),
	}
}

// BestFlips returns the top flip candidates for the query window, best
// score first, ties broken by ascending item id.
func (s *QueryService) BestFlips(ctx context.Context, q ports.FlipQuery) ([]domain.FlipResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFlipLimit
	}

	var results []domain.FlipResult
	for scan := limit * candidateOverscan; ; scan *= candidateOverscan {
		candidates, err := s.itemRepo.TopByFlipScore(ctx, ports.FlipCandidateFilter{
			MaxBuyPrice: q.MaxPrice,
			Limit:       scan,
		})
		if err != nil {
			return nil, fmt.Errorf("flip candidate scan: %w", err)
		}

		results = make([]domain.FlipResult, 0, limit)
		for i := range candidates {
			item := &candidates[i]
			if vendorBlocked(item) || noMarket(item) {
				continue
			}

			m, err := s.deriveFor(ctx, item, q.Days)
			if err != nil {
				if errors.Is(err, domain.ErrInvalidPrice) {
					continue
				}
				return nil, err
			}
			if m.FlipScore <= 0 {
				continue
			}
			if q.MinProfit > 0 && m.PercentProfit < q.MinProfit {
				continue
			}

			results = append(results, domain.FlipResult{Item: *item, Metrics: *m})
		}

		// A short window with more candidates behind it means filtering ate
		// the overscan; widen and rescan.
		if len(results) >= limit || len(candidates) < scan || scan >= maxCandidateScan {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Metrics.FlipScore != results[j].Metrics.FlipScore {
			return results[i].Metrics.FlipScore > results[j].Metrics.FlipScore
		}
		return results[i].Item.ID < results[j].Item.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ItemDetail returns the full per-item view: reference data, recent
// history, the latest depth sample and the derived metrics.
func (s *QueryService) ItemDetail(ctx context.Context, itemID int) (*domain.ItemDetail, error) {
	item, err := s.itemRepo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	history, err := s.snapshotRepo.Recent(ctx, itemID, 30)
	if err != nil {
		return nil, fmt.Errorf("item history: %w", err)
	}

	book, err := s.orderBookRepo.Get(ctx, itemID)
	if err != nil && !errors.Is(err, domain.ErrNoOrderBook) {
		return nil, err
	}

	detail := &domain.ItemDetail{
		Item:      *item,
		History:   history,
		OrderBook: book,
	}

	var latest, previous *domain.Snapshot
	if len(history) > 0 {
		latest = &history[0]
		detail.Latest = latest
	}
	if len(history) > 1 {
		previous = &history[1]
	}

	m, err := metrics.Derive(item, 1, latest, previous, book)
	if err != nil && !errors.Is(err, domain.ErrInvalidPrice) {
		return nil, err
	}
	detail.Metrics = m

	return detail, nil
}

// SearchItems finds items by case-insensitive name substring.
func (s *QueryService) SearchItems(ctx context.Context, query string) ([]domain.Item, error) {
	return s.itemRepo.Search(ctx, query, defaultSearchLimit)
}

// deriveFor recomputes an item's metrics from its two latest snapshots and
// depth sample.
func (s *QueryService) deriveFor(ctx context.Context, item *domain.Item, days int) (*domain.DerivedMetrics, error) {
	history, err := s.snapshotRepo.Recent(ctx, item.ID, 2)
	if err != nil {
		return nil, fmt.Errorf("snapshots for item %d: %w", item.ID, err)
	}

	var latest, previous *domain.Snapshot
	if len(history) > 0 {
		latest = &history[0]
	}
	if len(history) > 1 {
		previous = &history[1]
	}

	book, err := s.orderBookRepo.Get(ctx, item.ID)
	if err != nil && !errors.Is(err, domain.ErrNoOrderBook) {
		return nil, err
	}

	return metrics.Derive(item, days, latest, previous, book)
}

// Ensure QueryService implements ports.QueryService
var _ ports.QueryService = (*QueryService)(nil)

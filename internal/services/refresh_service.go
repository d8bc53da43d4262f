package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gw2trader/tradepost/internal/config"
	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/metrics"
	"github.com/gw2trader/tradepost/internal/ports"
)

// vendorBackfillLimit bounds how many missing vendor values one run
// backfills from the official API.
const vendorBackfillLimit = 1000

// RefreshService implements the ports.RefreshService interface. It drives
// one refresh run through planning, fetching, merging and computing. Item
// fetch failures are isolated per item; store write failures abort the run.
type RefreshService struct {
	itemRepo      ports.ItemRepository
	snapshotRepo  ports.SnapshotRepository
	orderBookRepo ports.OrderBookRepository
	catalog       ports.CatalogSource
	official      ports.OrderBookSource
	stats         ports.StatsService
	cfg           config.RefreshConfig
	logger        *slog.Logger

	active atomic.Bool
}

// NewRefreshService creates a new refresh service
func NewRefreshService(
	itemRepo ports.ItemRepository,
	snapshotRepo ports.SnapshotRepository,
	orderBookRepo ports.OrderBookRepository,
	catalog ports.CatalogSource,
	official ports.OrderBookSource,
	stats ports.StatsService,
	cfg config.RefreshConfig,
	logger *slog.Logger,
) *RefreshService {
	return &RefreshService{
		itemRepo:      itemRepo,
		snapshotRepo:  snapshotRepo,
		orderBookRepo: orderBookRepo,
		catalog:       catalog,
		official:      official,
		stats:         stats,
		cfg:           cfg,
		logger:        logger.With("component", "refresh_service"),
	}
}

// Active reports whether a run is currently in progress
func (s *RefreshService) Active() bool {
	return s.active.Load()
}

// fetchResult is one item's deep-refresh outcome, collected during the
// fetching phase and written out during merging.
type fetchResult struct {
	itemID  int
	history []domain.Snapshot
	err     error
}

// Run executes one refresh run. Only one run may be active at a time.
func (s *RefreshService) Run(ctx context.Context, opts ports.RunOptions) (*domain.RunReport, error) {
	if !s.active.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer s.active.Store(false)

	if opts.Days <= 0 {
		opts.Days = s.cfg.HistoryDays
	}
	if opts.Staleness == 0 {
		opts.Staleness = s.cfg.Staleness
	}
	if opts.DeepRefresh && s.cfg.FetchOrderBooks {
		opts.FetchOrderBooks = true
	}

	report := &domain.RunReport{
		Mode:      opts.Mode,
		State:     domain.StatePlanning,
		StartedAt: time.Now().UTC(),
	}

	err := s.run(ctx, opts, report)
	report.FinishedAt = time.Now().UTC()
	if err == nil {
		report.State = domain.StateDone
	}
	if s.stats != nil {
		s.stats.RecordRun(report, err)
	}

	s.logger.Info("refresh run finished",
		"mode", opts.Mode,
		"state", report.State,
		"planned", report.ItemsPlanned,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)

	if err != nil {
		return report, err
	}
	return report, nil
}

func (s *RefreshService) run(ctx context.Context, opts ports.RunOptions, report *domain.RunReport) error {
	// Planning: refresh the catalog, then pick the deep-refresh set.
	entries, malformed, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("catalog fetch: %w", err)
	}
	report.MalformedRows += malformed

	if err := s.itemRepo.UpsertCatalog(ctx, entries); err != nil {
		return fmt.Errorf("catalog merge: %w", err)
	}

	today := domain.MetricDate(time.Now())
	daily := make([]domain.Snapshot, 0, len(entries))
	for _, e := range entries {
		snap := e.Snapshot
		snap.Date = today
		daily = append(daily, snap)
	}
	if err := s.snapshotRepo.UpsertBatch(ctx, daily); err != nil {
		return fmt.Errorf("daily snapshot merge: %w", err)
	}

	if !opts.DeepRefresh {
		report.ItemsPlanned = len(entries)
		report.Succeeded = len(entries)
		return nil
	}

	// Backfill before planning so the planned set carries vendor values
	// into score computation.
	s.backfillVendorValues(ctx)

	planned, skipped, err := s.plan(ctx, opts)
	if err != nil {
		return err
	}
	report.ItemsPlanned = len(planned)
	report.Skipped = skipped

	// Fetching: per-item history through a bounded pool. An item's failure
	// never aborts the run.
	report.State = domain.StateFetching
	results := s.fetchHistories(ctx, planned, opts.Days)

	var books map[int]*domain.OrderBookSample
	if opts.FetchOrderBooks {
		ids := make([]int, 0, len(planned))
		for _, item := range planned {
			ids = append(ids, item.ID)
		}
		books, err = s.official.FetchOrderBooks(ctx, ids)
		if err != nil {
			s.logger.Warn("order book fetch failed, continuing without depth", "error", err)
			books = nil
		}
	}

	// Merging: persist what the fetch phase collected.
	report.State = domain.StateMerging
	succeeded := make(map[int][]domain.Snapshot, len(results))
	for _, res := range results {
		if res.err != nil {
			report.Failed++
			s.logger.Warn("item refresh failed", "item_id", res.itemID, "error", res.err)
			continue
		}
		if err := s.snapshotRepo.UpsertBatch(ctx, res.history); err != nil {
			return fmt.Errorf("history merge for item %d: %w", res.itemID, err)
		}
		succeeded[res.itemID] = res.history
		report.Succeeded++
	}

	for id, book := range books {
		if err := s.orderBookRepo.Upsert(ctx, book); err != nil {
			return fmt.Errorf("order book merge for item %d: %w", id, err)
		}
		report.OrderBooks++
	}

	// Computing: materialize aggregates and ranking scores for the items
	// that refreshed cleanly.
	report.State = domain.StateComputing
	updates := make([]ports.AggregateUpdate, 0, len(succeeded))
	refreshed := make([]int, 0, len(succeeded))
	for _, item := range planned {
		history, ok := succeeded[item.ID]
		if !ok {
			continue
		}
		updates = append(updates, s.computeAggregates(&item, history))
		refreshed = append(refreshed, item.ID)
	}

	if err := s.itemRepo.UpdateAggregates(ctx, updates); err != nil {
		return fmt.Errorf("aggregate update: %w", err)
	}
	if err := s.itemRepo.TouchRefreshed(ctx, refreshed, time.Now().UTC()); err != nil {
		return fmt.Errorf("refresh timestamps: %w", err)
	}

	if s.cfg.RetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
		pruned, err := s.snapshotRepo.Prune(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("snapshot prune: %w", err)
		}
		if pruned > 0 {
			s.logger.Info("pruned old snapshots", "rows", pruned)
		}
	}

	return nil
}

// plan picks the deep-refresh set for the run mode and drops items still
// fresh within the staleness threshold.
func (s *RefreshService) plan(ctx context.Context, opts ports.RunOptions) ([]domain.Item, int, error) {
	var candidates []domain.Item
	var err error

	switch opts.Mode {
	case domain.RunFull:
		candidates, err = s.itemRepo.List(ctx, domain.ItemFilter{TradableOnly: true})
	default:
		k := s.cfg.TopK
		if k <= 0 {
			k = 500
		}
		candidates, err = s.itemRepo.TopByVolume(ctx, k)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("run planning: %w", err)
	}

	now := time.Now().UTC()
	planned := candidates[:0]
	skipped := 0
	for _, item := range candidates {
		if item.RefreshedWithin(opts.Staleness, now) {
			skipped++
			continue
		}
		planned = append(planned, item)
	}
	return planned, skipped, nil
}

// backfillVendorValues fills in vendor values the catalog feed does not
// carry. Failures are logged and ignored; the run proceeds without them.
func (s *RefreshService) backfillVendorValues(ctx context.Context) {
	missing, err := s.itemRepo.MissingVendorValue(ctx, vendorBackfillLimit)
	if err != nil {
		s.logger.Warn("vendor value lookup failed", "error", err)
		return
	}
	if len(missing) == 0 {
		return
	}

	info, err := s.official.FetchItemInfo(ctx, missing)
	if err != nil {
		s.logger.Warn("vendor value backfill failed", "error", err)
		return
	}

	values := make(map[int]int64, len(info))
	for id, meta := range info {
		if meta.VendorValue > 0 {
			values[id] = meta.VendorValue
		}
	}
	if len(values) == 0 {
		return
	}

	if err := s.itemRepo.SetVendorValues(ctx, values); err != nil {
		s.logger.Warn("vendor value write failed", "error", err)
		return
	}
	s.logger.Info("backfilled vendor values", "items", len(values))
}

// fetchHistories runs the per-item history fetch through a worker pool
// bounded by the configured concurrency.
func (s *RefreshService) fetchHistories(ctx context.Context, items []domain.Item, days int) []fetchResult {
	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan int)
	out := make(chan fetchResult)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for itemID := range jobs {
				history, err := s.catalog.FetchHistory(ctx, itemID, days)
				out <- fetchResult{itemID: itemID, history: history, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item.ID:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]fetchResult, 0, len(items))
	for res := range out {
		results = append(results, res)
	}
	return results
}

// computeAggregates turns one item's freshly fetched history into the
// materialized aggregate row, including the ranking score.
func (s *RefreshService) computeAggregates(item *domain.Item, history []domain.Snapshot) ports.AggregateUpdate {
	totals := metrics.AggregateSold(history)
	buyFloor, sellCeiling := metrics.YesterdayFloors(history)

	score := 0.0
	if !vendorBlocked(item) && !noMarket(item) {
		pct, err := metrics.PercentProfit(item.BuyPrice, item.SellPrice)
		if err == nil {
			buyVel, sellVel := metrics.Velocity(totals.Buy1d, totals.Sell1d, 1)
			score = metrics.FlipScore(metrics.FlipVelocity(buyVel, sellVel), pct)
		} else if !errors.Is(err, domain.ErrInvalidPrice) {
			s.logger.Warn("profit computation failed", "item_id", item.ID, "error", err)
		}
	}
	if s.cfg.ScoreCap > 0 && score > s.cfg.ScoreCap {
		score = s.cfg.ScoreCap
	}

	return ports.AggregateUpdate{
		ItemID:               item.ID,
		BuySold1d:            totals.Buy1d,
		SellSold1d:           totals.Sell1d,
		BuySold7d:            totals.Buy7d,
		SellSold7d:           totals.Sell7d,
		BuySold30d:           totals.Buy30d,
		SellSold30d:          totals.Sell30d,
		BuyFloorYesterday:    buyFloor,
		SellCeilingYesterday: sellCeiling,
		FlipScore:            score,
	}
}

// vendorBlocked reports whether a flip buy order on the item could never
// fill because an NPC vendor already pays at least that much.
func vendorBlocked(item *domain.Item) bool {
	return item.VendorValue > 0 && item.BuyPrice+1 <= item.VendorValue
}

// noMarket reports whether the item lacks a two-sided market. Without a
// positive price and standing orders on both sides there is nothing to
// flip; a zero buy price in particular would make the one-copper tick the
// whole cost basis and blow up the profit percentage.
func noMarket(item *domain.Item) bool {
	return item.BuyPrice <= 0 || item.SellPrice <= 0 ||
		item.BuyQuantity == 0 || item.SellQuantity == 0
}

// Ensure RefreshService implements ports.RefreshService
var _ ports.RefreshService = (*RefreshService)(nil)

package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// In-memory fakes for the store and source ports.

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[int]domain.Item

	upsertErr     error
	aggregatesErr error
	countErr      error

	aggregateCalls [][]ports.AggregateUpdate
	touched        []int
	countCalls     int
}

func newFakeItemRepo(items ...domain.Item) *fakeItemRepo {
	r := &fakeItemRepo{items: make(map[int]domain.Item)}
	for _, item := range items {
		r.items[item.ID] = item
	}
	return r
}

func (r *fakeItemRepo) UpsertCatalog(ctx context.Context, entries []domain.CatalogEntry) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		existing, ok := r.items[e.Item.ID]
		item := e.Item
		if ok {
			item.VendorValue = existing.VendorValue
			item.LastRefreshed = existing.LastRefreshed
			item.FlipScore = existing.FlipScore
		}
		r.items[item.ID] = item
	}
	return nil
}

func (r *fakeItemRepo) Get(ctx context.Context, id int) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

func (r *fakeItemRepo) Search(ctx context.Context, name string, limit int) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Item
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeItemRepo) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Item
	for _, item := range r.items {
		if filter.TradableOnly && !item.Tradable {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeItemRepo) TopByVolume(ctx context.Context, k int) ([]domain.Item, error) {
	items, err := r.List(ctx, domain.ItemFilter{TradableOnly: true})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].BuyQuantity+items[i].SellQuantity > items[j].BuyQuantity+items[j].SellQuantity
	})
	if len(items) > k {
		items = items[:k]
	}
	return items, nil
}

func (r *fakeItemRepo) TopByFlipScore(ctx context.Context, filter ports.FlipCandidateFilter) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Item
	for _, item := range r.items {
		if !item.Tradable || item.FlipScore <= 0 {
			continue
		}
		if filter.MaxBuyPrice > 0 && item.BuyPrice > filter.MaxBuyPrice {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FlipScore != out[j].FlipScore {
			return out[i].FlipScore > out[j].FlipScore
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeItemRepo) MissingVendorValue(ctx context.Context, limit int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int
	for _, item := range r.items {
		if item.Tradable && item.VendorValue == 0 {
			ids = append(ids, item.ID)
		}
	}
	sort.Ints(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeItemRepo) SetVendorValues(ctx context.Context, values map[int]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range values {
		if item, ok := r.items[id]; ok {
			item.VendorValue = v
			r.items[id] = item
		}
	}
	return nil
}

func (r *fakeItemRepo) UpdateAggregates(ctx context.Context, updates []ports.AggregateUpdate) error {
	if r.aggregatesErr != nil {
		return r.aggregatesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregateCalls = append(r.aggregateCalls, updates)
	for _, u := range updates {
		item, ok := r.items[u.ItemID]
		if !ok {
			continue
		}
		item.BuySold1d, item.SellSold1d = u.BuySold1d, u.SellSold1d
		item.BuySold7d, item.SellSold7d = u.BuySold7d, u.SellSold7d
		item.BuySold30d, item.SellSold30d = u.BuySold30d, u.SellSold30d
		item.BuyFloorYesterday = u.BuyFloorYesterday
		item.SellCeilingYesterday = u.SellCeilingYesterday
		item.FlipScore = u.FlipScore
		r.items[u.ItemID] = item
	}
	return nil
}

func (r *fakeItemRepo) TouchRefreshed(ctx context.Context, ids []int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, ids...)
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			t := at
			item.LastRefreshed = &t
			r.items[id] = item
		}
	}
	return nil
}

func (r *fakeItemRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.items), nil
}

var _ ports.ItemRepository = (*fakeItemRepo)(nil)

type snapshotKey struct {
	itemID int
	date   time.Time
}

type fakeSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[snapshotKey]domain.Snapshot
	upsertErr error
}

func newFakeSnapshotRepo(snapshots ...domain.Snapshot) *fakeSnapshotRepo {
	r := &fakeSnapshotRepo{snapshots: make(map[snapshotKey]domain.Snapshot)}
	for _, s := range snapshots {
		r.snapshots[snapshotKey{s.ItemID, s.Date}] = s
	}
	return r
}

func (r *fakeSnapshotRepo) Upsert(ctx context.Context, snapshot *domain.Snapshot) error {
	return r.UpsertBatch(ctx, []domain.Snapshot{*snapshot})
}

func (r *fakeSnapshotRepo) UpsertBatch(ctx context.Context, snapshots []domain.Snapshot) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snapshots {
		r.snapshots[snapshotKey{s.ItemID, s.Date}] = s
	}
	return nil
}

func (r *fakeSnapshotRepo) Get(ctx context.Context, itemID int, date time.Time) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snapshots[snapshotKey{itemID, domain.MetricDate(date)}]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return &s, nil
}

func (r *fakeSnapshotRepo) Recent(ctx context.Context, itemID, n int) ([]domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Snapshot
	for key, s := range r.snapshots {
		if key.itemID == itemID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *fakeSnapshotRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.snapshots)), nil
}

func (r *fakeSnapshotRepo) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pruned int64
	for key := range r.snapshots {
		if key.date.Before(domain.MetricDate(olderThan)) {
			delete(r.snapshots, key)
			pruned++
		}
	}
	return pruned, nil
}

var _ ports.SnapshotRepository = (*fakeSnapshotRepo)(nil)

type fakeOrderBookRepo struct {
	mu    sync.Mutex
	books map[int]*domain.OrderBookSample
}

func newFakeOrderBookRepo() *fakeOrderBookRepo {
	return &fakeOrderBookRepo{books: make(map[int]*domain.OrderBookSample)}
}

func (r *fakeOrderBookRepo) Upsert(ctx context.Context, sample *domain.OrderBookSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[sample.ItemID] = sample
	return nil
}

func (r *fakeOrderBookRepo) Get(ctx context.Context, itemID int) (*domain.OrderBookSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	book, ok := r.books[itemID]
	if !ok {
		return nil, domain.ErrNoOrderBook
	}
	return book, nil
}

var _ ports.OrderBookRepository = (*fakeOrderBookRepo)(nil)

type fakeCatalogSource struct {
	entries   []domain.CatalogEntry
	malformed int
	fetchErr  error

	// block, when set, stalls FetchCatalog until the channel closes.
	block chan struct{}

	histories  map[int][]domain.Snapshot
	historyErr map[int]error
}

func (s *fakeCatalogSource) FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, int, error) {
	if s.block != nil {
		<-s.block
	}
	if s.fetchErr != nil {
		return nil, 0, s.fetchErr
	}
	return s.entries, s.malformed, nil
}

func (s *fakeCatalogSource) FetchHistory(ctx context.Context, itemID, days int) ([]domain.Snapshot, error) {
	if err, ok := s.historyErr[itemID]; ok {
		return nil, err
	}
	return s.histories[itemID], nil
}

var _ ports.CatalogSource = (*fakeCatalogSource)(nil)

type fakeOrderBookSource struct {
	books   map[int]*domain.OrderBookSample
	info    map[int]domain.ItemInfo
	pingErr error
}

func (s *fakeOrderBookSource) FetchOrderBook(ctx context.Context, itemID int) (*domain.OrderBookSample, error) {
	book, ok := s.books[itemID]
	if !ok {
		return nil, domain.ErrNoOrderBook
	}
	return book, nil
}

func (s *fakeOrderBookSource) FetchOrderBooks(ctx context.Context, itemIDs []int) (map[int]*domain.OrderBookSample, error) {
	out := make(map[int]*domain.OrderBookSample)
	for _, id := range itemIDs {
		if book, ok := s.books[id]; ok {
			out[id] = book
		}
	}
	return out, nil
}

func (s *fakeOrderBookSource) FetchItemInfo(ctx context.Context, itemIDs []int) (map[int]domain.ItemInfo, error) {
	out := make(map[int]domain.ItemInfo)
	for _, id := range itemIDs {
		if meta, ok := s.info[id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}

func (s *fakeOrderBookSource) Ping(ctx context.Context) error {
	return s.pingErr
}

var _ ports.OrderBookSource = (*fakeOrderBookSource)(nil)

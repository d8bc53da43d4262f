package ports

import (
	"context"
	"time"

	"github.com/gw2trader/tradepost/internal/domain"
)

// AggregateUpdate carries the per-item history aggregates the scheduler
// materializes after a deep refresh.
type AggregateUpdate struct {
	ItemID int

	BuySold1d   int64
	SellSold1d  int64
	BuySold7d   int64
	SellSold7d  int64
	BuySold30d  int64
	SellSold30d int64

	BuyFloorYesterday    int64
	SellCeilingYesterday int64

	FlipScore float64
}

// FlipCandidateFilter narrows the store's ranked candidate scan.
type FlipCandidateFilter struct {
	MaxBuyPrice int64 // 0 means unbounded
	Limit       int
}

// ItemRepository persists reference data and the per-item aggregates.
type ItemRepository interface {
	// UpsertCatalog merges catalog entries: inserts new items, updates
	// prices/quantities/names in place. Vendor values and history
	// aggregates already stored are preserved.
	UpsertCatalog(ctx context.Context, entries []domain.CatalogEntry) error

	Get(ctx context.Context, id int) (*domain.Item, error)
	Search(ctx context.Context, name string, limit int) ([]domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)

	// TopByVolume returns the k items with the highest current tradable
	// volume (buy plus sell quantity), via an indexed scan.
	TopByVolume(ctx context.Context, k int) ([]domain.Item, error)

	// TopByFlipScore streams the best-ranked candidates ordered by the
	// materialized score descending, id ascending; it never materializes
	// the full table in memory.
	TopByFlipScore(ctx context.Context, filter FlipCandidateFilter) ([]domain.Item, error)

	MissingVendorValue(ctx context.Context, limit int) ([]int, error)
	SetVendorValues(ctx context.Context, values map[int]int64) error

	UpdateAggregates(ctx context.Context, updates []AggregateUpdate) error

	// TouchRefreshed records the per-item last-refreshed timestamp used by
	// the staleness threshold.
	TouchRefreshed(ctx context.Context, ids []int, at time.Time) error

	Count(ctx context.Context) (int, error)
}

// SnapshotRepository is the keyed time-series store for daily snapshots.
// Upsert is idempotent per (item, date): a second write with the same key
// leaves the later values, never a duplicate row.
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot *domain.Snapshot) error
	UpsertBatch(ctx context.Context, snapshots []domain.Snapshot) error

	Get(ctx context.Context, itemID int, date time.Time) (*domain.Snapshot, error)

	// Recent returns up to n snapshots for the item, most recent first.
	Recent(ctx context.Context, itemID, n int) ([]domain.Snapshot, error)

	Count(ctx context.Context) (int64, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// OrderBookRepository retains the latest depth sample per item.
type OrderBookRepository interface {
	Upsert(ctx context.Context, sample *domain.OrderBookSample) error
	Get(ctx context.Context, itemID int) (*domain.OrderBookSample, error)
}

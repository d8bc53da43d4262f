package ports

import (
	"context"

	"github.com/gw2trader/tradepost/internal/domain"
)

// CatalogSource is the bulk catalog/history provider. Implementations
// convert everything to canonical copper before returning; source-native
// units never leak to callers. Transient failures are retried internally
// with bounded backoff and surface as domain.ErrSourceUnavailable once
// exhausted. Malformed rows are skipped and counted, never batch-fatal.
type CatalogSource interface {
	// FetchCatalog returns one entry per item with its current prices and
	// quantities, plus the count of rows skipped as malformed.
	FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, int, error)

	// FetchHistory returns up to days daily snapshots for the item,
	// ordered most recent first.
	FetchHistory(ctx context.Context, itemID, days int) ([]domain.Snapshot, error)
}

// OrderBookSource is the live order-book provider (the official API).
type OrderBookSource interface {
	// FetchOrderBook returns the current depth for one item, or
	// domain.ErrNoOrderBook if the item has no listings.
	FetchOrderBook(ctx context.Context, itemID int) (*domain.OrderBookSample, error)

	// FetchOrderBooks bulk-fetches depth for many items; items without
	// listings are simply absent from the result.
	FetchOrderBooks(ctx context.Context, itemIDs []int) (map[int]*domain.OrderBookSample, error)

	// FetchItemInfo returns reference metadata (vendor values, renames)
	// for the given ids.
	FetchItemInfo(ctx context.Context, itemIDs []int) (map[int]domain.ItemInfo, error)

	// Ping checks that the source is reachable.
	Ping(ctx context.Context) error
}

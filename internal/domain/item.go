package domain

import "time"

// Item is the reference record for one tradable good, plus its current
// market state and the aggregates the flips query ranks on. Prices are
// canonical copper subunits; 1 gold = 10000 copper.
type Item struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Tradable bool   `json:"tradable"`

	// VendorValue is what an NPC vendor pays for the item. A buy order at or
	// below it can never fill, so such items are excluded from flip ranking.
	// Zero means unknown until the official API backfill runs.
	VendorValue int64 `json:"vendor_value"`

	BuyPrice     int64 `json:"buy_price"`
	SellPrice    int64 `json:"sell_price"`
	BuyQuantity  int64 `json:"buy_quantity"`
	SellQuantity int64 `json:"sell_quantity"`

	// Sold counts over trailing windows, taken from the history provider's
	// per-day trade counts. These are raw facts; velocities are derived.
	BuySold1d   int64 `json:"buy_sold_1d"`
	SellSold1d  int64 `json:"sell_sold_1d"`
	BuySold7d   int64 `json:"buy_sold_7d"`
	SellSold7d  int64 `json:"sell_sold_7d"`
	BuySold30d  int64 `json:"buy_sold_30d"`
	SellSold30d int64 `json:"sell_sold_30d"`

	// Yesterday's price extremes, kept for the order-book competition
	// comparisons: buy orders at or above the floor and sell listings
	// undercutting the ceiling both compete.
	BuyFloorYesterday    int64 `json:"buy_floor_yesterday"`
	SellCeilingYesterday int64 `json:"sell_ceiling_yesterday"`

	// FlipScore is a materialized copy of the 1-day derived score so the
	// store can rank with an indexed scan. It is a cache, never the source
	// of truth: the query layer recomputes metrics from snapshots.
	FlipScore float64 `json:"flip_score"`

	LastRefreshed *time.Time `json:"last_refreshed,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SoldWindow returns the buy/sell sold totals for a ranking window.
// Supported windows are 1, 7 and 30 days; anything else falls back to 1.
func (i *Item) SoldWindow(days int) (buySold, sellSold int64) {
	switch days {
	case 7:
		return i.BuySold7d, i.SellSold7d
	case 30:
		return i.BuySold30d, i.SellSold30d
	default:
		return i.BuySold1d, i.SellSold1d
	}
}

// RefreshedWithin reports whether the item was refreshed within d of now.
// Items with no recorded refresh are always considered stale.
func (i *Item) RefreshedWithin(d time.Duration, now time.Time) bool {
	if i.LastRefreshed == nil || d <= 0 {
		return false
	}
	return now.Sub(*i.LastRefreshed) < d
}

// ItemFilter narrows ListItems results.
type ItemFilter struct {
	TradableOnly bool
	Limit        int
}

// ItemInfo is the official API's metadata for an item, used to backfill
// vendor values and catch renamed items.
type ItemInfo struct {
	ID          int
	Name        string
	VendorValue int64
}

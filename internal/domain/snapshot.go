package domain

import "time"

// Snapshot is one item's market state for one metric day, keyed by
// (ItemID, Date). Rows for past dates are immutable; the current day's row
// is overwritten by repeated same-day refreshes (upsert, last writer wins).
// All prices are canonical copper.
type Snapshot struct {
	ItemID int       `json:"item_id"`
	Date   time.Time `json:"date"` // UTC midnight of the metric day

	BuyPrice     int64 `json:"buy_price"`
	SellPrice    int64 `json:"sell_price"`
	BuyQuantity  int64 `json:"buy_quantity"`
	SellQuantity int64 `json:"sell_quantity"`

	// Per-day trade counts reported by the history provider. These are the
	// velocity source; velocity is never inferred from price deltas.
	BuySold  int64 `json:"buy_sold"`
	SellSold int64 `json:"sell_sold"`

	// Orders placed and pulled during the day, feeding the competition
	// ratio and price-pressure metrics.
	BuyListed    int64 `json:"buy_listed"`
	SellListed   int64 `json:"sell_listed"`
	BuyDelisted  int64 `json:"buy_delisted"`
	SellDelisted int64 `json:"sell_delisted"`

	// Daily price aggregates, in copper. Zero means the provider reported
	// no value for that day.
	BuyPriceAvg  int64 `json:"buy_price_avg"`
	SellPriceAvg int64 `json:"sell_price_avg"`
	BuyPriceMin  int64 `json:"buy_price_min"`
	SellPriceMax int64 `json:"sell_price_max"`
}

// MetricDate truncates t to the UTC metric day a snapshot is keyed by.
func MetricDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CatalogEntry is one row of the bulk catalog feed: the item's reference
// data together with its current-day snapshot.
type CatalogEntry struct {
	Item     Item
	Snapshot Snapshot
}

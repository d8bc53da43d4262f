package domain

// Pressure is the price-pressure signal with its auditable sub-scores.
// Both components are normalized to [0,1] before weighting.
type Pressure struct {
	SpreadCompression float64 `json:"spread_compression"`
	DelistedRatio     float64 `json:"delisted_ratio"`
	Combined          float64 `json:"combined"`
}

// DerivedMetrics is the computed view over an item's snapshots and order
// book. It is a pure function of its inputs and is never persisted as
// source of truth: identical inputs always reproduce it bit for bit.
type DerivedMetrics struct {
	BuyVelocity  float64 `json:"buy_velocity"`  // units/day
	SellVelocity float64 `json:"sell_velocity"` // units/day
	FlipVelocity float64 `json:"flip_velocity"` // min of the two sides

	PercentProfit float64 `json:"percent_profit"`
	// FlipScore stays in subunit space; division by 10000 happens only at
	// display time so sorting is never exposed to float display rounding.
	FlipScore float64 `json:"flip_score"`

	// ListedSoldRatio carries no signal when ListedSoldDefined is false
	// (zero completed transactions); such items are excluded from ranking
	// comparisons on the ratio rather than treated as zero.
	ListedSoldRatio   float64 `json:"listed_sold_ratio"`
	ListedSoldDefined bool    `json:"listed_sold_defined"`

	// Order-book competition, both sides: buy orders at or above
	// yesterday's buy floor, sell listings undercutting yesterday's sell
	// ceiling. HasOrderBook distinguishes "no sample" from "zero
	// competition".
	CompetitionCopper     int64 `json:"competition_copper"`
	CompetitionTiers      int   `json:"competition_tiers"`
	SellCompetitionCopper int64 `json:"sell_competition_copper"`
	SellCompetitionTiers  int   `json:"sell_competition_tiers"`
	HasOrderBook          bool  `json:"has_order_book"`

	Pressure Pressure `json:"pressure"`
}

// FlipResult pairs an item with its derived metrics for ranking output.
type FlipResult struct {
	Item    Item           `json:"item"`
	Metrics DerivedMetrics `json:"metrics"`
}

// ItemDetail is the full per-item view served by the info operation.
type ItemDetail struct {
	Item      Item             `json:"item"`
	Latest    *Snapshot        `json:"latest,omitempty"`
	History   []Snapshot       `json:"history,omitempty"`
	Metrics   *DerivedMetrics  `json:"metrics,omitempty"`
	OrderBook *OrderBookSample `json:"order_book,omitempty"`
}

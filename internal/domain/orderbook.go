package domain

import "time"

// PriceTier is one depth level of the live order book: a price and the
// quantity available at that price, in copper.
type PriceTier struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// OrderBookSample is the latest live depth snapshot for one item. Only the
// most recent sample per item is retained; history beyond "yesterday's
// floor price" comparisons is not needed.
type OrderBookSample struct {
	ItemID     int         `json:"item_id"`
	Bids       []PriceTier `json:"bids"` // buy orders, highest price first
	Asks       []PriceTier `json:"asks"` // sell listings, lowest price first
	CapturedAt time.Time   `json:"captured_at"`
}

package metrics

import (
	"errors"

	"github.com/gw2trader/tradepost/internal/domain"
)

// SoldTotals are trailing-window trade counts aggregated from history.
type SoldTotals struct {
	Buy1d, Sell1d   int64
	Buy7d, Sell7d   int64
	Buy30d, Sell30d int64
}

// AggregateSold sums per-day trade counts over 1/7/30-day windows.
// History is ordered most recent first. Days the provider reported no
// trades for are compacted out before windowing, matching the history
// feed's gap semantics.
func AggregateSold(history []domain.Snapshot) SoldTotals {
	var buys, sells []int64
	for _, h := range history {
		if h.BuySold > 0 {
			buys = append(buys, h.BuySold)
		}
		if h.SellSold > 0 {
			sells = append(sells, h.SellSold)
		}
	}

	return SoldTotals{
		Buy1d:   sumHead(buys, 1),
		Sell1d:  sumHead(sells, 1),
		Buy7d:   sumHead(buys, 7),
		Sell7d:  sumHead(sells, 7),
		Buy30d:  sumHead(buys, 30),
		Sell30d: sumHead(sells, 30),
	}
}

func sumHead(values []int64, n int) int64 {
	if n > len(values) {
		n = len(values)
	}
	var total int64
	for _, v := range values[:n] {
		total += v
	}
	return total
}

// YesterdayFloors returns yesterday's buy price floor and sell price
// ceiling from history ordered most recent first. Zeroes mean the history
// is too short to know.
func YesterdayFloors(history []domain.Snapshot) (buyFloor, sellCeiling int64) {
	if len(history) < 2 {
		return 0, 0
	}
	return history[1].BuyPriceMin, history[1].SellPriceMax
}

// Derive composes the full metric view for one item over a ranking window.
// latest and previous are the item's two most recent snapshots (either may
// be nil), book is the latest order-book sample or nil. The result is a
// pure function of the arguments.
func Derive(item *domain.Item, days int, latest, previous *domain.Snapshot, book *domain.OrderBookSample) (*domain.DerivedMetrics, error) {
	percentProfit, err := PercentProfit(item.BuyPrice, item.SellPrice)
	if err != nil {
		return nil, err
	}

	buySold, sellSold := item.SoldWindow(days)
	buyVelocity, sellVelocity := Velocity(buySold, sellSold, days)
	flipVelocity := FlipVelocity(buyVelocity, sellVelocity)

	m := &domain.DerivedMetrics{
		BuyVelocity:   buyVelocity,
		SellVelocity:  sellVelocity,
		FlipVelocity:  flipVelocity,
		PercentProfit: percentProfit,
		FlipScore:     FlipScore(flipVelocity, percentProfit),
	}

	if latest != nil {
		ratio, err := ListedSoldRatio(
			latest.BuyListed+latest.SellListed,
			latest.BuySold+latest.SellSold,
		)
		switch {
		case err == nil:
			m.ListedSoldRatio = ratio
			m.ListedSoldDefined = true
		case !errors.Is(err, domain.ErrUndefinedMetric):
			return nil, err
		}
	}

	if book != nil {
		m.HasOrderBook = true
		m.CompetitionCopper, m.CompetitionTiers =
			OrderBookCompetition(book, item.BuyFloorYesterday)
		m.SellCompetitionCopper, m.SellCompetitionTiers =
			SellCompetition(book, item.SellCeilingYesterday)
	}

	m.Pressure = PricePressure(latest, previous)
	return m, nil
}

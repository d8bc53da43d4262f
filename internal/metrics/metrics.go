// Package metrics is the pure computation engine over raw snapshots. Every
// function here is deterministic and total over well-formed input: no I/O,
// no clock reads, no mutable state. Recomputing from identical inputs
// yields bit-identical output.
package metrics

import (
	"fmt"

	"github.com/gw2trader/tradepost/internal/domain"
)

// Trading-post fee model: each side of a fill pays one tick of price
// granularity, and the sell side pays a fixed 15% market tax.
const sellTaxKeep = 0.85

// Velocity returns the buy/sell side velocities in units/day for a sold
// window. The counts come straight from the history provider's per-day
// trade figures; velocity is never inferred from price movement. A window
// of zero or fewer days is treated as one day.
func Velocity(buySold, sellSold int64, days int) (buyVelocity, sellVelocity float64) {
	if days < 1 {
		days = 1
	}
	return float64(buySold) / float64(days), float64(sellSold) / float64(days)
}

// FlipVelocity is the achievable daily flip throughput: the slower side
// gates the flip, so the minimum is used rather than the maximum.
func FlipVelocity(buyVelocity, sellVelocity float64) float64 {
	if buyVelocity < sellVelocity {
		return buyVelocity
	}
	return sellVelocity
}

// PercentProfit returns the net margin of buying at buyPrice and reselling
// at sellPrice, as a percentage of the amount risked. The ±1 terms model
// exchange tick granularity on each side; the 0.85 factor is the fixed
// sell-side market tax. Fails with domain.ErrInvalidPrice when
// buyPrice <= -1, which would make the denominator zero or negative.
func PercentProfit(buyPrice, sellPrice int64) (float64, error) {
	if buyPrice <= -1 {
		return 0, fmt.Errorf("%w: buy price %d", domain.ErrInvalidPrice, buyPrice)
	}
	cost := float64(buyPrice + 1)
	revenue := float64(sellPrice-1) * sellTaxKeep
	return (revenue - cost) / cost * 100, nil
}

// FlipScore is the expected daily profit rate of a flip, in copper
// subunits per day. It stays in subunit space; dividing by 10000 for
// display happens at the boundary, never before storage or comparison,
// so ranking is not exposed to floating display rounding. Zero velocity
// always yields a zero score; otherwise the sign follows the profit sign.
func FlipScore(flipVelocity, percentProfit float64) float64 {
	if flipVelocity == 0 {
		return 0
	}
	return flipVelocity * (percentProfit / 100)
}

// ListedSoldRatio compares orders placed against transactions completed.
// With zero completed transactions the ratio carries no signal and fails
// with domain.ErrUndefinedMetric; callers must exclude such items from
// ratio-based ranking rather than treating them as zero (or infinitely)
// competitive.
func ListedSoldRatio(listed, sold int64) (float64, error) {
	if sold == 0 {
		return 0, domain.ErrUndefinedMetric
	}
	return float64(listed) / float64(sold), nil
}

// OrderBookCompetition totals the copper committed by competing buyers:
// the sum of price x quantity over buy tiers priced at or above
// yesterday's buy floor, plus the tier count. A floor of zero or less
// means no floor is known and yields zero. Callers distinguish "no
// sample" from "zero competition" with a separate has-data flag.
func OrderBookCompetition(sample *domain.OrderBookSample, buyFloor int64) (copper int64, tiers int) {
	if sample == nil || buyFloor <= 0 {
		return 0, 0
	}
	for _, tier := range sample.Bids {
		if tier.Price >= buyFloor {
			copper += tier.Price * tier.Quantity
			tiers++
		}
	}
	return copper, tiers
}

// SellCompetition totals the copper committed by competing sellers: the
// sum of price x quantity over sell tiers undercutting yesterday's sell
// ceiling. A listing at the ceiling itself does not undercut, so only
// tiers strictly below it count. A ceiling of zero or less means no
// ceiling is known and yields zero.
func SellCompetition(sample *domain.OrderBookSample, sellCeiling int64) (copper int64, tiers int) {
	if sample == nil || sellCeiling <= 0 {
		return 0, 0
	}
	for _, tier := range sample.Asks {
		if tier.Price > 0 && tier.Price < sellCeiling {
			copper += tier.Price * tier.Quantity
			tiers++
		}
	}
	return copper, tiers
}

// PricePressure combines two normalized signals of a closing opportunity:
// how much the buy/sell spread compressed since yesterday, and what share
// of the day's order flow was pulled rather than filled. Each sub-score is
// clamped to [0,1] and the combination is a fixed equal weighting; both
// sub-scores are returned alongside the combined value so the weighting is
// auditable.
func PricePressure(today, yesterday *domain.Snapshot) domain.Pressure {
	var p domain.Pressure
	if today == nil || yesterday == nil {
		return p
	}

	if today.BuyPriceAvg > 0 && today.SellPriceAvg > 0 &&
		yesterday.BuyPriceAvg > 0 && yesterday.SellPriceAvg > 0 {
		spreadToday := today.SellPriceAvg - today.BuyPriceAvg
		spreadYesterday := yesterday.SellPriceAvg - yesterday.BuyPriceAvg
		if spreadYesterday > 0 {
			p.SpreadCompression = clamp01(
				float64(spreadYesterday-spreadToday) / float64(spreadYesterday))
		}
	}

	totalSold := today.BuySold + today.SellSold
	if totalSold > 0 {
		totalDelisted := today.BuyDelisted + today.SellDelisted
		p.DelistedRatio = clamp01(float64(totalDelisted) / float64(totalSold))
	}

	p.Combined = 0.5*p.SpreadCompression + 0.5*p.DelistedRatio
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

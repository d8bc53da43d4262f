package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/metrics"
)

func TestPercentProfit(t *testing.T) {
	t.Run("documented scenario", func(t *testing.T) {
		// buy=1000, sell=1200: ((1199)*0.85 - 1001) / 1001 * 100
		got, err := metrics.PercentProfit(1000, 1200)
		require.NoError(t, err)
		assert.InDelta(t, 1.813, got, 0.001)
	})

	t.Run("negative margin stays negative", func(t *testing.T) {
		got, err := metrics.PercentProfit(1000, 1000)
		require.NoError(t, err)
		assert.Less(t, got, 0.0)
	})

	t.Run("bit identical across calls", func(t *testing.T) {
		a, err := metrics.PercentProfit(12345, 23456)
		require.NoError(t, err)
		b, err := metrics.PercentProfit(12345, 23456)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("rejects denominator at or below zero", func(t *testing.T) {
		_, err := metrics.PercentProfit(-1, 100)
		assert.ErrorIs(t, err, domain.ErrInvalidPrice)

		_, err = metrics.PercentProfit(-50, 100)
		assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	})

	t.Run("zero buy price is valid", func(t *testing.T) {
		got, err := metrics.PercentProfit(0, 100)
		require.NoError(t, err)
		// cost 1, revenue 99*0.85
		assert.InDelta(t, (99*0.85-1)/1*100, got, 1e-9)
	})
}

func TestFlipVelocity(t *testing.T) {
	assert.Equal(t, 30.0, metrics.FlipVelocity(50, 30))
	assert.Equal(t, 30.0, metrics.FlipVelocity(30, 50))
	assert.Equal(t, 0.0, metrics.FlipVelocity(0, 50))
}

func TestVelocity(t *testing.T) {
	buy, sell := metrics.Velocity(700, 140, 7)
	assert.Equal(t, 100.0, buy)
	assert.Equal(t, 20.0, sell)

	// window below one day falls back to one
	buy, _ = metrics.Velocity(50, 0, 0)
	assert.Equal(t, 50.0, buy)
}

func TestFlipScore(t *testing.T) {
	t.Run("documented scenario", func(t *testing.T) {
		profit, err := metrics.PercentProfit(1000, 1200)
		require.NoError(t, err)

		flipVelocity := metrics.FlipVelocity(50, 30)
		assert.Equal(t, 30.0, flipVelocity)

		score := metrics.FlipScore(flipVelocity, profit)
		assert.InDelta(t, 0.544, score, 0.001)
	})

	t.Run("zero velocity means zero score for any profit", func(t *testing.T) {
		assert.Equal(t, 0.0, metrics.FlipScore(0, 500))
		assert.Equal(t, 0.0, metrics.FlipScore(0, -500))
	})

	t.Run("sign follows profit when velocity positive", func(t *testing.T) {
		assert.Greater(t, metrics.FlipScore(10, 5), 0.0)
		assert.Less(t, metrics.FlipScore(10, -5), 0.0)
	})
}

func TestListedSoldRatio(t *testing.T) {
	ratio, err := metrics.ListedSoldRatio(500, 100)
	require.NoError(t, err)
	assert.Equal(t, 5.0, ratio)

	_, err = metrics.ListedSoldRatio(500, 0)
	assert.ErrorIs(t, err, domain.ErrUndefinedMetric)
}

func TestOrderBookCompetition(t *testing.T) {
	sample := &domain.OrderBookSample{
		ItemID: 1,
		Bids: []domain.PriceTier{
			{Price: 110, Quantity: 30},
			{Price: 105, Quantity: 20},
			{Price: 100, Quantity: 10},
			{Price: 90, Quantity: 500},
		},
		CapturedAt: time.Now(),
	}

	t.Run("tiers at or above the floor compete", func(t *testing.T) {
		copper, tiers := metrics.OrderBookCompetition(sample, 100)
		assert.Equal(t, int64(110*30+105*20+100*10), copper)
		assert.Equal(t, 3, tiers)
	})

	t.Run("unknown floor yields zero", func(t *testing.T) {
		copper, tiers := metrics.OrderBookCompetition(sample, 0)
		assert.Zero(t, copper)
		assert.Zero(t, tiers)
	})

	t.Run("nil sample yields zero", func(t *testing.T) {
		copper, tiers := metrics.OrderBookCompetition(nil, 100)
		assert.Zero(t, copper)
		assert.Zero(t, tiers)
	})
}

func TestSellCompetition(t *testing.T) {
	sample := &domain.OrderBookSample{
		ItemID: 1,
		Asks: []domain.PriceTier{
			{Price: 1205, Quantity: 2},
			{Price: 1210, Quantity: 1},
			{Price: 1300, Quantity: 4},
		},
		CapturedAt: time.Now(),
	}

	t.Run("only undercutting tiers compete", func(t *testing.T) {
		copper, tiers := metrics.SellCompetition(sample, 1210)
		assert.Equal(t, int64(1205*2), copper)
		assert.Equal(t, 1, tiers)
	})

	t.Run("unknown ceiling yields zero", func(t *testing.T) {
		copper, tiers := metrics.SellCompetition(sample, 0)
		assert.Zero(t, copper)
		assert.Zero(t, tiers)
	})

	t.Run("nil sample yields zero", func(t *testing.T) {
		copper, tiers := metrics.SellCompetition(nil, 1210)
		assert.Zero(t, copper)
		assert.Zero(t, tiers)
	})

	t.Run("zero priced tiers are ignored", func(t *testing.T) {
		junk := &domain.OrderBookSample{Asks: []domain.PriceTier{{Price: 0, Quantity: 99}}}
		copper, tiers := metrics.SellCompetition(junk, 1210)
		assert.Zero(t, copper)
		assert.Zero(t, tiers)
	})
}

func TestPricePressure(t *testing.T) {
	t.Run("compression plus delisted flow", func(t *testing.T) {
		today := &domain.Snapshot{
			BuyPriceAvg:  100,
			SellPriceAvg: 120,
			BuySold:      100,
			SellSold:     100,
			BuyDelisted:  10,
			SellDelisted: 10,
		}
		yesterday := &domain.Snapshot{
			BuyPriceAvg:  95,
			SellPriceAvg: 135,
		}

		p := metrics.PricePressure(today, yesterday)
		// spread compressed from 40 to 20
		assert.InDelta(t, 0.5, p.SpreadCompression, 1e-9)
		assert.InDelta(t, 0.1, p.DelistedRatio, 1e-9)
		assert.InDelta(t, 0.3, p.Combined, 1e-9)
	})

	t.Run("sub-scores clamp to unit interval", func(t *testing.T) {
		today := &domain.Snapshot{
			BuyPriceAvg:  100,
			SellPriceAvg: 101,
			BuySold:      2,
			SellSold:     2,
			BuyDelisted:  50,
			SellDelisted: 50,
		}
		yesterday := &domain.Snapshot{
			BuyPriceAvg:  50,
			SellPriceAvg: 300,
		}

		p := metrics.PricePressure(today, yesterday)
		assert.LessOrEqual(t, p.SpreadCompression, 1.0)
		assert.Equal(t, 1.0, p.DelistedRatio)
		assert.LessOrEqual(t, p.Combined, 1.0)
	})

	t.Run("missing days yield zero pressure", func(t *testing.T) {
		assert.Zero(t, metrics.PricePressure(nil, nil))
		assert.Zero(t, metrics.PricePressure(&domain.Snapshot{}, nil))
	})

	t.Run("widening spread is not negative pressure", func(t *testing.T) {
		today := &domain.Snapshot{BuyPriceAvg: 100, SellPriceAvg: 200, BuySold: 1}
		yesterday := &domain.Snapshot{BuyPriceAvg: 100, SellPriceAvg: 110}

		p := metrics.PricePressure(today, yesterday)
		assert.Equal(t, 0.0, p.SpreadCompression)
	})
}

package ports

import (
	"context"
	"time"

	"github.com/gw2trader/tradepost/internal/domain"
)

// RunOptions parameterizes one refresh run.
type RunOptions struct {
	Mode domain.RunMode

	// Days is the history window fetched per item; zero uses the
	// configured default.
	Days int

	// Staleness skips items refreshed within this duration. Zero uses the
	// configured default; negative disables the skip.
	Staleness time.Duration

	// DeepRefresh enables the per-item history (and order book) fetch.
	// Without it the run only refreshes the price catalog and recomputes
	// scores from stored aggregates.
	DeepRefresh bool

	// FetchOrderBooks forces the live depth fetch during a deep refresh.
	// The configured default applies even when false.
	FetchOrderBooks bool
}

// RefreshService drives a refresh run end to end. Only one run may be
// active at a time; a second trigger fails with domain.ErrRunInProgress.
type RefreshService interface {
	Run(ctx context.Context, opts RunOptions) (*domain.RunReport, error)
	Active() bool
}

// FlipQuery filters and sizes a best-flips request.
type FlipQuery struct {
	Days      int     // velocity window: 1, 7 or 30
	Limit     int
	MinProfit float64 // percent
	MaxPrice  int64   // copper; 0 means unbounded
}

// QueryService answers read-only questions from store contents. Safe to
// call concurrently with an in-progress refresh.
type QueryService interface {
	BestFlips(ctx context.Context, q FlipQuery) ([]domain.FlipResult, error)
	ItemDetail(ctx context.Context, itemID int) (*domain.ItemDetail, error)
	SearchItems(ctx context.Context, query string) ([]domain.Item, error)
}

// StatsService tracks operational counters for the status surface.
type StatsService interface {
	Stats(ctx context.Context) (*domain.Stats, error)
	RecordRun(report *domain.RunReport, err error)
}

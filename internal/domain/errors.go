package domain

import "errors"

var (
	// Source errors
	ErrSourceUnavailable = errors.New("data source unavailable")
	ErrMalformedRecord   = errors.New("malformed source record")

	// Contract violations, surfaced immediately and never coerced
	ErrInvalidUnit  = errors.New("unrecognized source unit")
	ErrInvalidPrice = errors.New("invalid price")

	// ErrUndefinedMetric marks a metric with no signal. It is distinct from
	// zero: callers exclude undefined values from ranking instead of
	// treating them as maximally (or minimally) competitive.
	ErrUndefinedMetric = errors.New("metric undefined")

	// Store errors
	ErrItemNotFound     = errors.New("item not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrNoOrderBook      = errors.New("no order book sample")

	// Scheduler errors
	ErrRunInProgress = errors.New("refresh run already in progress")

	ErrInternal = errors.New("internal error")
)

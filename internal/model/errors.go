package model

import "errors"

// Error taxonomy for the chart core. Provider errors degrade a single
// resource and are surfaced as per-panel notices; they are never fatal.
var (
	// ErrInvalidPeriod rejects a non-positive or out-of-bound indicator
	// period. Raised synchronously, before any fetch or compute.
	ErrInvalidPeriod = errors.New("invalid indicator period")

	// ErrUnknownInterval rejects an interval other than 1d or 1wk.
	ErrUnknownInterval = errors.New("interval must be 1d or 1wk")

	// ErrProviderUnavailable marks an upstream fetch failure.
	ErrProviderUnavailable = errors.New("market data provider unavailable")

	// ErrRateLimited marks an upstream 429.
	ErrRateLimited = errors.New("market data provider rate limited")
)

package types

import "github.com/pkg/errors"

var (
	// ErrSymbolNotFound is permanent for the given input: no mapping, no heuristic match, no search hit.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrPriceUnavailable means every cache tier and the live fetch failed.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrRateLimited is the provider's throttling signal.
	ErrRateLimited = errors.New("rate limited by provider")
	// ErrPersistence wraps store I/O failures that the cache layer swallows.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnsupported is returned for features the configured provider does not offer.
	ErrUnsupported = errors.New("not supported by the price provider")
)

package domain

import "errors"

var (
	// ErrNotFound means the requested tag does not exist upstream.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the API rejected the key. Clash Royale keys are
	// bound to source IPs, so this usually fires after an IP change.
	ErrForbidden = errors.New("api key rejected")

	// ErrRateLimited surfaces once the 429 retry budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
)

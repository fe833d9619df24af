package riot

import "errors"

var (
	// ErrNotFound means the remote says the resource does not exist.
	// A valid "absent" result, not a failure.
	ErrNotFound = errors.New("riot: not found")

	// ErrRateLimited means the remote rejected the call with 429 even
	// after the single cooldown retry.
	ErrRateLimited = errors.New("riot: rate limited")

	// ErrUnavailable covers transport failures, timeouts and unexpected
	// non-2xx statuses. Callers treat it as "no data this cycle".
	ErrUnavailable = errors.New("riot: unavailable")

	// ErrInvalidCredential means the API key was rejected (401/403).
	// Surfaced at setup time, before monitoring starts.
	ErrInvalidCredential = errors.New("riot: invalid API key")

	// ErrUnknownRegion means the region code has no routing entry.
	ErrUnknownRegion = errors.New("riot: unknown region")
)

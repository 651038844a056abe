package rate

import "errors"

var (
	// ErrInvalidLimit is returned when a caller supplies a non-positive request
	// budget or window. Misconfiguration fails fast instead of silently allowing.
	ErrInvalidLimit = errors.New("invalid rate limit configuration")
	// ErrStoreUnavailable is returned when the backing counter store cannot be reached.
	ErrStoreUnavailable = errors.New("rate counter store unavailable")
)

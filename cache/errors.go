package cache

import "errors"

var (
	// ErrNotFound is returned by Source implementations to report that a
	// key does not exist in the backing source. It is the only Fetch error
	// that coordinators treat as absence rather than failure.
	ErrNotFound = errors.New("cache: key not found")

	// ErrInvalidCapacity is returned by New when Options.Capacity is not positive.
	ErrInvalidCapacity = errors.New("cache: capacity must be > 0")

	// ErrInvalidTTL is returned when a negative DefaultTTL is configured.
	ErrInvalidTTL = errors.New("cache: default TTL must be >= 0")
)

package database

import "errors"

var (
	// ErrShortCodeExists is returned when an attempt is made to create
	// a new shortened URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when an attempt is made to retrieve
	// a URL that doesn't exist or whose record is inactive.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a short code resolves to a record
	// whose expiry has passed.
	ErrURLExpired = errors.New("url expired")
	// ErrStorage wraps datastore failures that are not part of the taxonomy
	// above (connectivity, timeouts). Never retried inside the core.
	ErrStorage = errors.New("storage unavailable")
)

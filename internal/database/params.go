package database

import "time"

// CreateURLParams carries the fields persisted when a shortened URL is created.
type CreateURLParams struct {
	ShortCode   string
	OriginalURL string
	LinkID      string
	UserID      string
	ExpiresAt   *time.Time
}

// UpdateURLParams carries the mutable fields of a URL record. Nil fields are
// left unchanged. ShortCode and OriginalURL are immutable and deliberately
// have no place here.
type UpdateURLParams struct {
	IsActive  *bool
	ExpiresAt *time.Time
}

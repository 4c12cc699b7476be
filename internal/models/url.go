package models

import "time"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code or key associated with the original URL.
	// Immutable after creation.
	ShortCode string
	// OriginalURL is the normalized destination URL that the short code points to.
	// Immutable after creation.
	OriginalURL string
	// LinkID is an optional reference to the owning link entity in the
	// surrounding application. Opaque to this service; empty means unset.
	LinkID string
	// UserID is an optional owner reference, used only for listing.
	// Empty means unset.
	UserID string
	// Clicks tracks the number of times the shortened URL has been resolved.
	Clicks int64
	// IsActive controls whether the short code resolves. Inactive records are
	// reported as not found to keep deactivation unobservable.
	IsActive bool
	// ExpiresAt, when set and in the past, makes resolution fail as expired.
	ExpiresAt *time.Time
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp indicating when the shortened URL was last updated.
	UpdatedAt time.Time

	// ShortURL is the externally resolvable URL computed from the configured
	// base origin. Never persisted.
	ShortURL string
}

// Expired reports whether the record's expiry has passed.
func (u *URL) Expired() bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(time.Now())
}

// ClickEvent is a single click row written by the surrounding application
// when it performs the actual redirect. This service only reads these rows
// to compute statistics. Country and Device may legitimately be empty.
type ClickEvent struct {
	LinkID    string
	ClickerIP string
	Country   string
	Device    string
	ClickedAt time.Time
}

// FrequencyEntry is one row of a descending-sorted breakdown table.
type FrequencyEntry struct {
	Name  string
	Count int64
}

// DateCount is the number of clicks recorded on a single UTC date.
type DateCount struct {
	Date  string // YYYY-MM-DD
	Count int64
}

// URLStats contains derived statistics for a shortened URL. It is computed
// on demand from the click counter and the click-event log, never persisted.
type URLStats struct {
	Clicks       int64
	UniqueClicks int64
	TopCountries []FrequencyEntry // capped at 10, descending by count
	TopDevices   []FrequencyEntry // capped at 10, descending by count
	ClicksByDate []DateCount      // trailing 30 days, ascending by date
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/linkgrove/shortener/internal/baseurl"
	"github.com/linkgrove/shortener/internal/database"
	"github.com/linkgrove/shortener/internal/models"
	"github.com/linkgrove/shortener/internal/shortcode"
	"github.com/linkgrove/shortener/internal/urlnorm"
)

// RedirectPrefix is the reserved path prefix all short URLs resolve under.
// It must not collide with other routes of the surrounding application.
const RedirectPrefix = "/s/"

const (
	// maxCreateRetries bounds the regenerate-on-collision loop. Collisions on
	// random codes are birthday-paradox rare; no backoff is needed.
	maxCreateRetries = 5
	// maxUserURLs bounds listing to avoid unbounded scans.
	maxUserURLs = 100
	// maxStatsEvents bounds how many click events a single stats request reads.
	maxStatsEvents = 10000
)

var (
	// ErrCircularReference is returned when a destination URL points back at
	// the shortener's own redirect path.
	ErrCircularReference = errors.New("destination points back into the shortener")
	// ErrCustomCodeTaken is returned when a requested custom code already
	// exists. The caller asked for that specific code, so no random code is
	// silently substituted.
	ErrCustomCodeTaken = errors.New("custom code already taken")
	// ErrCodeGenerationExhausted is returned when random code generation
	// collided repeatedly. Safe to retry later.
	ErrCodeGenerationExhausted = errors.New("maximum retries exceeded for generating short code")
)

// URLRepository defines the datastore operations the service needs.
type URLRepository interface {
	// Create inserts a new shortened URL. A short-code uniqueness violation
	// surfaces as database.ErrShortCodeExists.
	Create(ctx context.Context, params database.CreateURLParams) (*models.URL, error)

	// ResolveAndCount looks up an active, non-expired record by short code
	// and atomically increments its click counter.
	ResolveAndCount(ctx context.Context, shortCode string) (*models.URL, error)

	// GetByCode retrieves a record by short code regardless of active state.
	GetByCode(ctx context.Context, shortCode string) (*models.URL, error)

	// Update applies a partial update of the mutable fields.
	Update(ctx context.Context, id int64, params database.UpdateURLParams) (*models.URL, error)

	// Delete removes a record permanently.
	Delete(ctx context.Context, id int64) error

	// ListByUser returns a user's records ordered newest-first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.URL, error)

	// ClickEventsByLink returns the most recent click events for a link.
	ClickEventsByLink(ctx context.Context, linkID string, limit int) ([]models.ClickEvent, error)
}

// ShortenParams is the input to ShortenURL. Only OriginalURL is required.
type ShortenParams struct {
	OriginalURL string
	LinkID      string
	UserID      string
	CustomCode  string
	ExpiresAt   *time.Time
}

// URLService orchestrates creation, resolution, mutation and statistics of
// shortened URLs. It is stateless; all coordination is pushed to the
// datastore's unique index and atomic increment.
type URLService struct {
	repo       URLRepository
	base       *baseurl.Resolver
	codeLength int
}

// NewURLService creates a new URLService with the provided repository,
// base-origin resolver and generated code length.
func NewURLService(repo URLRepository, base *baseurl.Resolver, codeLength int) *URLService {
	return &URLService{
		repo:       repo,
		base:       base,
		codeLength: codeLength,
	}
}

// ShortenURL validates and normalizes the destination, resolves a short code
// (custom or randomly generated with bounded collision retries) and persists
// the record. The returned model carries the externally resolvable ShortURL.
func (s *URLService) ShortenURL(ctx context.Context, params ShortenParams) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"

	normalized, err := urlnorm.Normalize(params.OriginalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.pointsAtShortener(normalized) {
		return nil, fmt.Errorf("%s: %w", op, ErrCircularReference)
	}

	if params.CustomCode != "" {
		return s.createWithCustomCode(ctx, normalized, params)
	}

	for i := 0; i < maxCreateRetries; i++ {
		code, err := shortcode.Generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		url, err := s.repo.Create(ctx, database.CreateURLParams{
			ShortCode:   code,
			OriginalURL: normalized,
			LinkID:      params.LinkID,
			UserID:      params.UserID,
			ExpiresAt:   params.ExpiresAt,
		})
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		s.annotate(url)
		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrCodeGenerationExhausted)
}

func (s *URLService) createWithCustomCode(ctx context.Context, normalized string, params ShortenParams) (*models.URL, error) {
	const op = "service.URLService.createWithCustomCode"

	if err := shortcode.ValidateCustom(params.CustomCode); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.repo.Create(ctx, database.CreateURLParams{
		ShortCode:   params.CustomCode,
		OriginalURL: normalized,
		LinkID:      params.LinkID,
		UserID:      params.UserID,
		ExpiresAt:   params.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, database.ErrShortCodeExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrCustomCodeTaken)
		}

		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	s.annotate(url)
	return url, nil
}

// ResolveShortCode returns the destination for a short code, counting the
// click. Inactive and absent codes are both reported as
// database.ErrURLNotFound; expired codes as database.ErrURLExpired.
func (s *URLService) ResolveShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "service.URLService.ResolveShortCode"

	url, err := s.repo.ResolveAndCount(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	s.annotate(url)
	return url, nil
}

// ModifyURL applies a partial update of the mutable fields (is_active,
// expires_at). Short code and destination are immutable; the params type
// cannot express changing them.
func (s *URLService) ModifyURL(ctx context.Context, id int64, params database.UpdateURLParams) (*models.URL, error) {
	const op = "service.URLService.ModifyURL"

	url, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	s.annotate(url)
	return url, nil
}

// DeleteURL removes the record permanently. A second delete of the same id
// fails with database.ErrURLNotFound.
func (s *URLService) DeleteURL(ctx context.Context, id int64) error {
	const op = "service.URLService.DeleteURL"

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	return nil
}

// ListUserURLs returns a user's shortened URLs, newest first, each annotated
// with its computed ShortURL. The result is bounded to 100 records.
func (s *URLService) ListUserURLs(ctx context.Context, userID string) ([]models.URL, error) {
	const op = "service.URLService.ListUserURLs"

	urls, err := s.repo.ListByUser(ctx, userID, maxUserURLs)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	for i := range urls {
		s.annotate(&urls[i])
	}

	return urls, nil
}

// URLStats aggregates click analytics for a short code. Statistics are
// best-effort: a missing record, a record with no linked analytics, or a
// failing event query all yield (nil, nil) rather than an error.
func (s *URLService) URLStats(ctx context.Context, shortCode string) (*models.URLStats, error) {
	url, err := s.repo.GetByCode(ctx, shortCode)
	if err != nil {
		return nil, nil
	}
	if url.LinkID == "" {
		return nil, nil
	}

	events, err := s.repo.ClickEventsByLink(ctx, url.LinkID, maxStatsEvents)
	if err != nil {
		return nil, nil
	}

	return aggregateClicks(url.Clicks, events), nil
}

// pointsAtShortener reports whether a normalized destination targets the
// service's own redirect path. Checked one hop deep only.
func (s *URLService) pointsAtShortener(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	base, err := url.Parse(s.base.Origin())
	if err != nil || base.Host == "" {
		return false
	}

	return strings.EqualFold(u.Host, base.Host) && strings.HasPrefix(u.Path, RedirectPrefix)
}

func (s *URLService) annotate(url *models.URL) {
	url.ShortURL = s.base.Origin() + RedirectPrefix + url.ShortCode
}

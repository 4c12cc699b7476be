package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/linkgrove/shortener/internal/database"
	"github.com/linkgrove/shortener/internal/models"
)

type urlRecord struct {
	ID          int64          `db:"id"`
	ShortCode   string         `db:"short_code"`
	OriginalURL string         `db:"original_url"`
	LinkID      sql.NullString `db:"link_id"`
	UserID      sql.NullString `db:"user_id"`
	Clicks      int64          `db:"clicks"`
	IsActive    bool           `db:"is_active"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *urlRecord) ToURL() *models.URL {
	url := &models.URL{
		ID:          r.ID,
		ShortCode:   r.ShortCode,
		OriginalURL: r.OriginalURL,
		LinkID:      r.LinkID.String,
		UserID:      r.UserID.String,
		Clicks:      r.Clicks,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if r.ExpiresAt.Valid {
		expiresAt := r.ExpiresAt.Time
		url.ExpiresAt = &expiresAt
	}

	return url
}

type clickEventRecord struct {
	LinkID    string         `db:"link_id"`
	ClickerIP sql.NullString `db:"clicker_ip"`
	Country   sql.NullString `db:"country"`
	Device    sql.NullString `db:"device"`
	ClickedAt time.Time      `db:"clicked_at"`
}

func (r *clickEventRecord) ToClickEvent() models.ClickEvent {
	return models.ClickEvent{
		LinkID:    r.LinkID,
		ClickerIP: r.ClickerIP.String,
		Country:   r.Country.String,
		Device:    r.Device.String,
		ClickedAt: r.ClickedAt,
	}
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

// Create inserts a new record. The unique index on short_code is the sole
// arbiter of code uniqueness: a violation surfaces as ErrShortCodeExists.
func (r *URLRepository) Create(ctx context.Context, params database.CreateURLParams) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Create"

	rec := new(urlRecord)
	query := `INSERT INTO short_urls(short_code, original_url, link_id, user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		params.ShortCode,
		params.OriginalURL,
		nullString(params.LinkID),
		nullString(params.UserID),
		nullTime(params.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w: %w", op, database.ErrStorage, err)
	}

	return rec.ToURL(), nil
}

// ResolveAndCount looks up an active, non-expired record by short code and
// increments its click counter in the same UPDATE statement, so N concurrent
// resolutions add exactly N. When no row qualifies, a follow-up read
// distinguishes an expired record from an absent or inactive one; inactive
// records are reported as not found.
func (r *URLRepository) ResolveAndCount(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.ResolveAndCount"

	rec := new(urlRecord)
	query := `UPDATE short_urls
		SET clicks = clicks + 1, updated_at = now()
		WHERE short_code = $1
			AND is_active
			AND (expires_at IS NULL OR expires_at > now())
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err == nil {
		return rec.ToURL(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: failed to resolve url record: %w: %w", op, database.ErrStorage, err)
	}

	checkQuery := `SELECT * FROM short_urls WHERE short_code = $1 AND is_active`

	err = r.db.GetContext(ctx, rec, checkQuery, shortCode)
	switch {
	case err == nil && rec.ToURL().Expired():
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLExpired)
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	default:
		return nil, fmt.Errorf("%s: failed to check url record: %w: %w", op, database.ErrStorage, err)
	}
}

// GetByCode retrieves a record by short code regardless of its active state.
func (r *URLRepository) GetByCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.GetByCode"

	rec := new(urlRecord)
	query := `SELECT * FROM short_urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w: %w", op, database.ErrStorage, err)
	}

	return rec.ToURL(), nil
}

// Update applies a partial update of the mutable fields.
func (r *URLRepository) Update(ctx context.Context, id int64, params database.UpdateURLParams) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Update"

	sets := []string{"updated_at = now()"}
	args := []any{}

	if params.IsActive != nil {
		args = append(args, *params.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if params.ExpiresAt != nil {
		args = append(args, *params.ExpiresAt)
		sets = append(sets, fmt.Sprintf("expires_at = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE short_urls SET %s WHERE id = $%d RETURNING *`,
		strings.Join(sets, ", "), len(args))

	rec := new(urlRecord)

	err := r.db.GetContext(ctx, rec, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update url record: %w: %w", op, database.ErrStorage, err)
	}

	return rec.ToURL(), nil
}

// Delete removes a record permanently. Deleting an absent record fails with
// ErrURLNotFound.
func (r *URLRepository) Delete(ctx context.Context, id int64) error {
	const op = "database.postgres.URLRepository.Delete"

	query := `DELETE FROM short_urls WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: failed to delete url record: %w: %w", op, database.ErrStorage, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w: %w", op, database.ErrStorage, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

// ListByUser returns a user's records ordered newest-first, bounded by limit.
func (r *URLRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.URL, error) {
	const op = "database.postgres.URLRepository.ListByUser"

	var recs []urlRecord
	query := `SELECT * FROM short_urls
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &recs, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list url records: %w: %w", op, database.ErrStorage, err)
	}

	urls := make([]models.URL, 0, len(recs))
	for _, rec := range recs {
		urls = append(urls, *rec.ToURL())
	}

	return urls, nil
}

// ClickEventsByLink returns the most recent click events for a link, newest
// first, bounded by limit. The rows are written by the surrounding
// application; this service only reads them.
func (r *URLRepository) ClickEventsByLink(ctx context.Context, linkID string, limit int) ([]models.ClickEvent, error) {
	const op = "database.postgres.URLRepository.ClickEventsByLink"

	var recs []clickEventRecord
	query := `SELECT link_id, clicker_ip, country, device, clicked_at
		FROM click_events
		WHERE link_id = $1
		ORDER BY clicked_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &recs, query, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query click events: %w: %w", op, database.ErrStorage, err)
	}

	events := make([]models.ClickEvent, 0, len(recs))
	for _, rec := range recs {
		events = append(events, rec.ToClickEvent())
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

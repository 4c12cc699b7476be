package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/linkgrove/shortener/internal/config"
	"github.com/linkgrove/shortener/internal/database"
	"github.com/linkgrove/shortener/internal/database/postgres"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func setupPostgres(t testing.TB) config.Postgres {
	t.Helper()

	ctx := context.Background()

	pgUser := "test"
	pgPassword := "test"
	pgDB := "shortener"

	pgCont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDB,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForExposedPort(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCont.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	pgHost, err := pgCont.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	pgPort, err := pgCont.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return config.Postgres{
		User:     pgUser,
		Password: pgPassword,
		Host:     pgHost,
		Port:     pgPort.Int(),
		DB:       pgDB,
		SSLMode:  "disable",
	}
}

func runMigrations(t testing.TB, cfg config.Postgres) {
	t.Helper()

	migrationPath := "file://../../../../migrations"

	m, err := migrate.New(migrationPath, cfg.DSN())
	if err != nil {
		t.Fatalf("Failed to initialize migrations: %v", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			t.Fatalf("Failed to rollback migrations: %v", err)
		}
	})
}

func setupURLRepository(t testing.TB) (*postgres.URLRepository, *sqlx.DB) {
	t.Helper()

	cfg := setupPostgres(t)
	runMigrations(t, cfg)

	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
	})

	return postgres.NewURLRepository(db), db
}

func getClicks(t testing.TB, ctx context.Context, db *sqlx.DB, shortCode string) int64 {
	t.Helper()

	var clicks int64
	query := `SELECT clicks FROM short_urls WHERE short_code = $1`

	if err := db.GetContext(ctx, &clicks, query, shortCode); err != nil {
		t.Fatalf("Failed to get clicks: %v", err)
	}

	return clicks
}

func insertClickEvent(t testing.TB, ctx context.Context, db *sqlx.DB, linkID, clickerIP, country, device string) {
	t.Helper()

	query := `INSERT INTO click_events(link_id, clicker_ip, country, device)
		VALUES ($1, $2, $3, $4)`

	if _, err := db.ExecContext(ctx, query, linkID, clickerIP, country, device); err != nil {
		t.Fatalf("Failed to insert click event: %v", err)
	}
}

func TestURLRepository_Create(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("short code exists", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		_, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)

		url, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example2.com",
		})

		assert.ErrorIs(t, err, database.ErrShortCodeExists)
		assert.Nil(t, url)
	})

	t.Run("success", func(t *testing.T) {
		ctx := context.Background()
		repo, db := setupURLRepository(t)

		expiresAt := time.Now().Add(time.Hour).UTC()

		url, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
			LinkID:      "link1",
			UserID:      "user1",
			ExpiresAt:   &expiresAt,
		})

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, "abc123", url.ShortCode)
		assert.Equal(t, "https://example.com", url.OriginalURL)
		assert.Equal(t, "link1", url.LinkID)
		assert.Equal(t, "user1", url.UserID)
		assert.True(t, url.IsActive)
		assert.Zero(t, url.Clicks)
		if assert.NotNil(t, url.ExpiresAt) {
			assert.WithinDuration(t, expiresAt, *url.ExpiresAt, time.Second)
		}

		assert.Equal(t, int64(0), getClicks(t, ctx, db, "abc123"))
	})
}

func TestURLRepository_ResolveAndCount(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("url not found", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("inactive url is opaque", func(t *testing.T) {
		ctx := context.Background()
		repo, db := setupURLRepository(t)

		created, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)

		isActive := false
		_, err = repo.Update(ctx, created.ID, database.UpdateURLParams{IsActive: &isActive})
		require.NoError(t, err)

		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
		assert.Equal(t, int64(0), getClicks(t, ctx, db, "abc123"))
	})

	t.Run("expired url does not count clicks", func(t *testing.T) {
		ctx := context.Background()
		repo, db := setupURLRepository(t)

		expiredAt := time.Now().Add(-time.Hour).UTC()

		_, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
			ExpiresAt:   &expiredAt,
		})
		require.NoError(t, err)

		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.ErrorIs(t, err, database.ErrURLExpired)
		assert.Nil(t, url)
		assert.Equal(t, int64(0), getClicks(t, ctx, db, "abc123"))
	})

	t.Run("expiry wins over active flag", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		expiredAt := time.Now().Add(-time.Hour).UTC()

		_, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
			ExpiresAt:   &expiredAt,
		})
		require.NoError(t, err)

		// Still active, but past its expiry: reported expired, not found.
		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.ErrorIs(t, err, database.ErrURLExpired)
		assert.NotErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("success increments clicks", func(t *testing.T) {
		ctx := context.Background()
		repo, db := setupURLRepository(t)

		_, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)

		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, "https://example.com", url.OriginalURL)
		assert.Equal(t, int64(1), url.Clicks)
		assert.Equal(t, int64(1), getClicks(t, ctx, db, "abc123"))
	})

	t.Run("concurrent resolutions count exactly once each", func(t *testing.T) {
		ctx := context.Background()
		repo, db := setupURLRepository(t)

		_, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)

		const resolutions = 50

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < resolutions; i++ {
			g.Go(func() error {
				_, err := repo.ResolveAndCount(gctx, "abc123")
				return err
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int64(resolutions), getClicks(t, ctx, db, "abc123"))
	})
}

func TestURLRepository_Update(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("url not found", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		isActive := false
		url, err := repo.Update(ctx, 1, database.UpdateURLParams{IsActive: &isActive})

		assert.ErrorIs(t, err, database.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("reactivating restores resolution", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		created, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)

		isActive := false
		_, err = repo.Update(ctx, created.ID, database.UpdateURLParams{IsActive: &isActive})
		require.NoError(t, err)

		_, err = repo.ResolveAndCount(ctx, "abc123")
		require.ErrorIs(t, err, database.ErrURLNotFound)

		isActive = true
		_, err = repo.Update(ctx, created.ID, database.UpdateURLParams{IsActive: &isActive})
		require.NoError(t, err)

		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.NoError(t, err)
		assert.NotNil(t, url)
		assert.Equal(t, int64(1), url.Clicks)
	})

	t.Run("clearing expiry revives an expired url", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		expiredAt := time.Now().Add(-time.Hour).UTC()

		created, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
			ExpiresAt:   &expiredAt,
		})
		require.NoError(t, err)

		_, err = repo.ResolveAndCount(ctx, "abc123")
		require.ErrorIs(t, err, database.ErrURLExpired)

		futureAt := time.Now().Add(time.Hour).UTC()
		_, err = repo.Update(ctx, created.ID, database.UpdateURLParams{ExpiresAt: &futureAt})
		require.NoError(t, err)

		url, err := repo.ResolveAndCount(ctx, "abc123")

		assert.NoError(t, err)
		assert.NotNil(t, url)
	})
}

func TestURLRepository_Delete(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("url not found", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		err := repo.Delete(ctx, 1)

		assert.ErrorIs(t, err, database.ErrURLNotFound)
	})

	t.Run("success", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		created, err := repo.Create(ctx, database.CreateURLParams{
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		require.NoError(t, err)

		assert.NoError(t, repo.Delete(ctx, created.ID))

		_, err = repo.GetByCode(ctx, "abc123")
		assert.ErrorIs(t, err, database.ErrURLNotFound)
	})
}

func TestURLRepository_ListByUser(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("returns newest first and only the user's urls", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		for _, p := range []database.CreateURLParams{
			{ShortCode: "code1", OriginalURL: "https://example.com/1", UserID: "user1"},
			{ShortCode: "code2", OriginalURL: "https://example.com/2", UserID: "user1"},
			{ShortCode: "other1", OriginalURL: "https://example.com/3", UserID: "user2"},
		} {
			_, err := repo.Create(ctx, p)
			require.NoError(t, err)
		}

		urls, err := repo.ListByUser(ctx, "user1", 100)

		assert.NoError(t, err)
		if assert.Len(t, urls, 2) {
			assert.Equal(t, "code2", urls[0].ShortCode)
			assert.Equal(t, "code1", urls[1].ShortCode)
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		for _, code := range []string{"code1", "code2", "code3"} {
			_, err := repo.Create(ctx, database.CreateURLParams{
				ShortCode:   code,
				OriginalURL: "https://example.com/" + code,
				UserID:      "user1",
			})
			require.NoError(t, err)
		}

		urls, err := repo.ListByUser(ctx, "user1", 2)

		assert.NoError(t, err)
		assert.Len(t, urls, 2)
	})
}

func TestURLRepository_ClickEventsByLink(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("empty", func(t *testing.T) {
		ctx := context.Background()
		repo, _ := setupURLRepository(t)

		events, err := repo.ClickEventsByLink(ctx, "link1", 100)

		assert.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("success", func(t *testing.T) {
		ctx := context.Background()
		repo, db := setupURLRepository(t)

		insertClickEvent(t, ctx, db, "link1", "10.0.0.1", "DE", "mobile")
		insertClickEvent(t, ctx, db, "link1", "10.0.0.2", "US", "desktop")
		insertClickEvent(t, ctx, db, "link2", "10.0.0.3", "FR", "tablet")

		events, err := repo.ClickEventsByLink(ctx, "link1", 100)

		assert.NoError(t, err)
		if assert.Len(t, events, 2) {
			for _, e := range events {
				assert.Equal(t, "link1", e.LinkID)
			}
		}
	})
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/linkgrove/shortener/internal/api/http"
	"github.com/linkgrove/shortener/internal/baseurl"
	"github.com/linkgrove/shortener/internal/config"
	"github.com/linkgrove/shortener/internal/database/postgres"
	"github.com/linkgrove/shortener/internal/service"
	pgpool "github.com/linkgrove/shortener/pkg/postgres"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	db, err := pgpool.New(
		ctx,
		cfg.Postgres.DSN(),
		pgpool.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpool.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpool.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpool.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pgpool.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	base, err := newBaseURLResolver(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	urlRepo := postgres.NewURLRepository(db)
	urlSvc := service.NewURLService(urlRepo, base, cfg.ShortCodeLength)

	logger := httplog.NewLogger("shortener", httplog.Options{
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        myhttp.NewRouter(logger, urlSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func newBaseURLResolver(cfg *config.Config) (*baseurl.Resolver, error) {
	const op = "app.newBaseURLResolver"

	var hostPattern *regexp.Regexp

	if cfg.BaseURL.ProductionHostPattern != "" {
		var err error

		hostPattern, err = regexp.Compile(cfg.BaseURL.ProductionHostPattern)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid production host pattern: %w", op, err)
		}
	}

	return baseurl.NewResolver(
		baseurl.Explicit(cfg.BaseURL.AppURL),
		baseurl.Production(cfg.Env, config.EnvProd, cfg.BaseURL.ProductionOrigin),
		baseurl.Deployment(cfg.BaseURL.DeploymentURL, hostPattern),
		baseurl.Localhost(cfg.HTTPServer.Port),
	), nil
}

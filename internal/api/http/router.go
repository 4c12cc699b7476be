// Package http provides the HTTP delivery layer for the link shortener:
// the JSON management API under /api/v1 and the public redirect route
// under /s/.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/linkgrove/shortener/internal/database"
	"github.com/linkgrove/shortener/internal/models"
	"github.com/linkgrove/shortener/internal/service"
)

type URLService interface {
	ShortenURL(ctx context.Context, params service.ShortenParams) (*models.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*models.URL, error)
	ModifyURL(ctx context.Context, id int64, params database.UpdateURLParams) (*models.URL, error)
	DeleteURL(ctx context.Context, id int64) error
	ListUserURLs(ctx context.Context, userID string) ([]models.URL, error)
	URLStats(ctx context.Context, shortCode string) (*models.URLStats, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, urlSvc URLService) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	// The redirect route lives outside /api/v1: it is hit by browsers, not
	// API clients, and the /s/ prefix is reserved for it.
	r.Get(service.RedirectPrefix+"{shortCode}", handleRedirect(urlSvc))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/urls", func(r chi.Router) {
			r.Post("/", handleShortenURL(urlSvc, validate))
			r.Get("/", handleListUserURLs(urlSvc))
			r.Patch("/{id}", handleModifyURL(urlSvc))
			r.Delete("/{id}", handleDeleteURL(urlSvc))
		})

		r.Get("/stats/{shortCode}", handleURLStats(urlSvc))
	})

	return r
}

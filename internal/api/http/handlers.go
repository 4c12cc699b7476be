package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/linkgrove/shortener/internal/database"
	"github.com/linkgrove/shortener/internal/models"
	"github.com/linkgrove/shortener/internal/service"
	"github.com/linkgrove/shortener/internal/shortcode"
	"github.com/linkgrove/shortener/internal/urlnorm"
	"github.com/linkgrove/shortener/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type shortenURLRequest struct {
	URL        string     `json:"url" validate:"required"`
	CustomCode string     `json:"custom_code,omitempty" validate:"omitempty,alphanum,min=3,max=20"`
	LinkID     string     `json:"link_id,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// updateURLRequest carries the mutable fields only. A short_code or url key
// in the payload is ignored, never applied.
type updateURLRequest struct {
	IsActive  *bool      `json:"is_active,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type urlResponse struct {
	ID        int64      `json:"id"`
	ShortCode string     `json:"short_code"`
	ShortURL  string     `json:"short_url"`
	URL       string     `json:"url"`
	LinkID    string     `json:"link_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Clicks    int64      `json:"clicks"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toURLResponse(url *models.URL) urlResponse {
	return urlResponse{
		ID:        url.ID,
		ShortCode: url.ShortCode,
		ShortURL:  url.ShortURL,
		URL:       url.OriginalURL,
		LinkID:    url.LinkID,
		UserID:    url.UserID,
		Clicks:    url.Clicks,
		IsActive:  url.IsActive,
		ExpiresAt: url.ExpiresAt,
		CreatedAt: url.CreatedAt,
		UpdatedAt: url.UpdatedAt,
	}
}

type frequencyEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type dateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type statsResponse struct {
	Clicks       int64            `json:"clicks"`
	UniqueClicks int64            `json:"unique_clicks"`
	TopCountries []frequencyEntry `json:"top_countries"`
	TopDevices   []frequencyEntry `json:"top_devices"`
	ClicksByDate []dateCount      `json:"clicks_by_date"`
}

func toStatsResponse(stats *models.URLStats) statsResponse {
	resp := statsResponse{
		Clicks:       stats.Clicks,
		UniqueClicks: stats.UniqueClicks,
		TopCountries: make([]frequencyEntry, 0, len(stats.TopCountries)),
		TopDevices:   make([]frequencyEntry, 0, len(stats.TopDevices)),
		ClicksByDate: make([]dateCount, 0, len(stats.ClicksByDate)),
	}

	for _, e := range stats.TopCountries {
		resp.TopCountries = append(resp.TopCountries, frequencyEntry{Name: e.Name, Count: e.Count})
	}
	for _, e := range stats.TopDevices {
		resp.TopDevices = append(resp.TopDevices, frequencyEntry{Name: e.Name, Count: e.Count})
	}
	for _, d := range stats.ClicksByDate {
		resp.ClicksByDate = append(resp.ClicksByDate, dateCount{Date: d.Date, Count: d.Count})
	}

	return resp
}

func handleShortenURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		url, err := svc.ShortenURL(r.Context(), service.ShortenParams{
			OriginalURL: req.URL,
			LinkID:      req.LinkID,
			UserID:      req.UserID,
			CustomCode:  req.CustomCode,
			ExpiresAt:   req.ExpiresAt,
		})
		if err != nil {
			switch {
			case errors.Is(err, urlnorm.ErrInvalidURL):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid URL",
					"The provided URL cannot be used as a redirect target."))
			case errors.Is(err, service.ErrCircularReference):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Circular Reference",
					"Short URLs must not point at the shortener itself."))
			case errors.Is(err, shortcode.ErrInvalidCustomCode):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.ErrorResponse("Invalid Custom Code",
					"Custom codes must be 3-20 alphanumeric characters."))
			case errors.Is(err, service.ErrCustomCodeTaken):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ErrorResponse("Custom Code Taken",
					"The requested custom code is already in use. Please choose another."))
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.ResolveShortCode(r.Context(), shortCode)
		if err != nil {
			switch {
			// Absent and deactivated records are indistinguishable here,
			// so disabling a link doesn't advertise its existence.
			case errors.Is(err, database.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, database.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.LinkExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		// Temporary redirect: a permanent one would let browsers cache the
		// hop and bypass click accounting.
		http.Redirect(w, r, url.OriginalURL, http.StatusFound)
	}
}

func handleModifyURL(svc URLService) http.HandlerFunc {
	const op = "api.http.handleModifyURL"
	const successMsg = "The URL was successfully modified."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		var req updateURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		url, err := svc.ModifyURL(r.Context(), id, database.UpdateURLParams{
			IsActive:  req.IsActive,
			ExpiresAt: req.ExpiresAt,
		})
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

func handleDeleteURL(svc URLService) http.HandlerFunc {
	const op = "api.http.handleDeleteURL"
	const successMsg = "The URL was successfully deleted."

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := svc.DeleteURL(r.Context(), id); err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

func handleListUserURLs(svc URLService) http.HandlerFunc {
	const op = "api.http.handleListUserURLs"
	const successMsg = "The URLs were successfully retrieved."

	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ErrorResponse("Missing Parameter",
				"The user_id query parameter is required."))
			return
		}

		urls, err := svc.ListUserURLs(r.Context(), userID)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for i := range urls {
			data = append(data, toURLResponse(&urls[i]))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

func handleURLStats(svc URLService) http.HandlerFunc {
	const op = "api.http.handleURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		stats, err := svc.URLStats(r.Context(), shortCode)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}
		if stats == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toStatsResponse(stats)))
	}
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"adgenius/internal/http/handlers"
	"adgenius/internal/middleware"
)

// RouterOptions carries the middleware settings.
type RouterOptions struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup))

		r.Get("/v1/styles", app.Styles)
		r.Get("/v1/aspect-ratios", app.AspectRatios)

		r.Post("/v1/sessions", app.CreateSession)
		r.Route("/v1/sessions/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Post("/reset", app.ResetSession)
			r.Put("/image", app.UploadImage)
			r.Patch("/profile", app.UpdateProfile)
			r.Post("/generations", app.Generate)
			r.Post("/generations/retry", app.RetryGeneration)
			r.Get("/ad", app.GetAd)
			r.Get("/ad/image", app.GetAdImage)
			r.Get("/export", app.Export)
			r.Get("/export/bundle", app.ExportBundle)
		})
	})

	return r
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"processing-requests/internal/http/handlers"
	"processing-requests/internal/infra"
	"processing-requests/internal/middleware"
)

// Options configures the router's middleware chain.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	AllowedOrigins  []string
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/processing-requests", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Get("/", app.ListProcessingRequests)
		r.Post("/", app.CreateProcessingRequest)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetProcessingRequest)
			r.Patch("/", app.UpdateProcessingRequest)
			r.Post("/input-assets", app.AddInputAsset)
			r.Post("/output-assets", app.AddOutputAsset)
			r.Post("/dispatch", app.DispatchProcessingRequest)
		})
	})

	return r
}

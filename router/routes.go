package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mstgnz/storepay/handler"
	"github.com/mstgnz/storepay/infra/metrics"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/response"
	v1 "github.com/mstgnz/storepay/router/v1"
)

// Handlers are all handlers served by the API
type Handlers struct {
	v1.Handlers
	Auth   *handler.AuthHandler
	Health *handler.HealthHandler
}

// Options configures the shared middleware chain
type Options struct {
	Tokens              middle.TokenValidator
	RateLimiter         *middle.RateLimiter
	Metrics             *metrics.Metrics
	CallbackConcurrency int
	RequestTimeout      time.Duration
}

// New builds the HTTP router: public provider callbacks, auth and health
// endpoints, and the authenticated /v1 API
func New(h Handlers, opts Options) http.Handler {
	if opts.CallbackConcurrency <= 0 {
		opts.CallbackConcurrency = 32
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middle.RequestLoggingMiddleware())
	if opts.Metrics != nil {
		r.Use(middle.MetricsMiddleware(opts.Metrics))
	}
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/health", h.Health.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	// provider callbacks: no auth, bounded concurrency, always a JSON detail reply
	r.Route("/payment", func(r chi.Router) {
		r.Use(middle.CallbackPanicRecoveryMiddleware())
		r.Use(middleware.ThrottleWithOpts(middleware.ThrottleOpts{
			Limit:          opts.CallbackConcurrency,
			BacklogLimit:   opts.CallbackConcurrency * 4,
			BacklogTimeout: 30 * time.Second,
		}))
		r.Use(middle.CallbackBodyMiddleware())
		r.Post("/robokassa_callback/", h.Payment.RobokassaCallback)
		r.Post("/coinpayments_callback/", h.Payment.CoinPaymentsCallback)
	})

	r.Group(func(r chi.Router) {
		r.Use(middle.PanicRecoveryMiddleware())
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
			ExposedHeaders:   []string{"Link", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(middle.JSONBodyMiddleware())

		r.Route("/auth", func(r chi.Router) {
			if opts.RateLimiter != nil {
				r.Use(middle.RateLimitMiddleware(opts.RateLimiter))
			}
			r.Post("/login", h.Auth.Login)
			r.Post("/register", h.Auth.Register)
		})

		r.Route("/v1", func(r chi.Router) {
			r.Use(middle.JWTAuthMiddleware(opts.Tokens))
			if opts.RateLimiter != nil {
				// keyed by tenant once the token is verified
				r.Use(middle.RateLimitMiddleware(opts.RateLimiter))
			}
			v1.Routes(r, h.Handlers)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
	})

	return r
}

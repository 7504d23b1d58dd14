package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/unrolled/secure"

	"github.com/commng/commng/internal/observability"
)

// OpsParams collects dependencies of the operational endpoint.
type OpsParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

// NewOpsRouter builds the router serving /healthz and /metrics. This is the
// only HTTP surface the permission core owns.
func NewOpsRouter(params OpsParams) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        params.Config != nil && params.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(secureMiddleware.Handler)
	router.Use(httprate.LimitByIP(60, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				params.Logger.Warn("healthz postgres", slog.Any("error", err))
				http.Error(w, "postgres unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		if params.Redis != nil {
			if err := params.Redis.Ping(ctx).Err(); err != nil {
				params.Logger.Warn("healthz redis", slog.Any("error", err))
				http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	return router
}

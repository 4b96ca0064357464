package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ucplabs/ucp-bridge/internal/catalog"
	"github.com/ucplabs/ucp-bridge/internal/rpc"
	"github.com/ucplabs/ucp-bridge/internal/service"
	"github.com/ucplabs/ucp-bridge/pkg/health"
	"github.com/ucplabs/ucp-bridge/pkg/middleware"
)

// RouterConfig carries the collaborators and identity the router needs.
type RouterConfig struct {
	Checkout      *service.CheckoutService
	Catalog       *catalog.Service
	RPC           *rpc.Server
	Health        *health.Handler
	ServiceName   string
	StoreName     string
	StoreCurrency string
	Version       string
}

// NewRouter creates a chi router with all bridge routes registered.
func NewRouter(cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	checkoutHandler := NewCheckoutHandler(cfg.Checkout, logger)
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.StoreName, cfg.StoreCurrency, cfg.Version, logger)
	rpcHandler := NewRPCHandler(cfg.RPC, logger)

	r.Route("/ucp/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/checkout", checkoutHandler.Create)
		r.Post("/checkout/{token}", checkoutHandler.Update)
		r.Post("/checkout/{token}/complete", checkoutHandler.Complete)
		r.Post("/search", catalogHandler.Search)
		r.Get("/products/{id}", catalogHandler.GetProduct)
		r.Get("/discovery", catalogHandler.Discovery)
		r.Post("/rpc", rpcHandler.Handle)
	})

	return r
}

// ContentTypeJSON sets the JSON content type on every response.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

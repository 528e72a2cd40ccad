// Package server wires the route table to a network listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/demo/internal/config"
	"github.com/example/demo/internal/http/health"
	applog "github.com/example/demo/internal/platform/logging"
	appmiddleware "github.com/example/demo/internal/platform/middleware"
	"github.com/example/demo/internal/platform/respond"
	"github.com/example/demo/internal/routes"
)

// Title names the API in huma's OpenAPI model.
const Title = "Demo API"

// maxRequestBody caps request bodies. Routes ignore bodies, so this only bounds what a client can push.
const maxRequestBody = 1 << 20

// MetricsPath is served on the operational listener only, next to health.Path.
const MetricsPath = "/metrics"

// Handle is a running server returned by Start.
type Handle struct {
	srv      *http.Server
	ln       net.Listener
	metrics  *http.Server
	metricLn net.Listener
	errc     chan error
}

// NewRouter builds the HTTP handler serving routes behind the standard
// middleware stack. metrics may be nil.
func NewRouter(cfg *config.Config, version string, metrics *appmiddleware.Metrics, table ...routes.Route) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Security(),
		appmiddleware.DecodedPath(),
		// HEAD on a GET route runs the GET handler; net/http drops the body.
		chimiddleware.GetHead,
		appmiddleware.CORS(cfg.AllowedOrigins...),
		appmiddleware.RequestID(),
		// RealIP trusts X-Forwarded-For / X-Real-IP; deploy behind a proxy that sets them.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(maxRequestBody),
	)
	if metrics != nil {
		router.Use(metrics.Handler())
	}
	router.Use(
		applog.RequestLogger(),
		applog.AccessLogger(),
		respond.Recoverer(),
	)

	hcfg := huma.DefaultConfig(Title, version)
	// Only the route table is served; no documentation endpoints.
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	hcfg.SchemasPath = ""
	api := humachi.New(router, hcfg)
	routes.Register(api, table...)

	return router
}

// Start binds the configured address and serves the application routes in the
// background. A bind failure is returned immediately and nothing keeps running.
// ctx only scopes startup logging; use Shutdown to stop the server.
func Start(ctx context.Context, cfg *config.Config, version string) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics, err := appmiddleware.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}

	h := &Handle{
		srv:  newHTTPServer(cfg, NewRouter(cfg, version, metrics, routes.Table()...)),
		ln:   ln,
		errc: make(chan error, 2),
	}

	if addr := cfg.MetricsAddr(); addr != "" {
		mln, err := net.Listen("tcp", addr)
		if err != nil {
			_ = ln.Close()
			return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
		}
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		h.metricLn = mln
		h.metrics = newHTTPServer(cfg, newMetricsRouter(reg, version))
		go h.serve(ctx, h.metrics, mln, "metrics")
	}

	go h.serve(ctx, h.srv, ln, "http")
	return h, nil
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

func newMetricsRouter(reg *prometheus.Registry, version string) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())
	router.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.Method(http.MethodGet, health.Path, health.Handler(version))
	return router
}

func (h *Handle) serve(ctx context.Context, srv *http.Server, ln net.Listener, name string) {
	applog.LogInfo(ctx, "server listening", zap.String("server", name), zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.errc <- fmt.Errorf("serve %s: %w", name, err)
	}
}

// Addr is the bound address of the application listener.
func (h *Handle) Addr() net.Addr {
	return h.ln.Addr()
}

// MetricsAddr is the bound address of the metrics listener, or nil when disabled.
func (h *Handle) MetricsAddr() net.Addr {
	if h.metricLn == nil {
		return nil
	}
	return h.metricLn.Addr()
}

// Err delivers serve failures other than a graceful shutdown.
func (h *Handle) Err() <-chan error {
	return h.errc
}

// Shutdown gracefully stops both listeners, waiting for in-flight requests
// until ctx is done.
func (h *Handle) Shutdown(ctx context.Context) error {
	var errs []error
	if err := h.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if h.metrics != nil {
		if err := h.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

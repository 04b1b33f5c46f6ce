package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/osse101/riddlegroup/internal/database"
	"github.com/osse101/riddlegroup/internal/group"
	"github.com/osse101/riddlegroup/internal/handler"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/internal/metrics"
)

// Options configures the HTTP surface
type Options struct {
	Port           int
	APIKey         string
	Version        string
	TrustedProxies []string
	// RequestsPerWindow and ClientWindow size the per-client throttle; zero picks the defaults
	RequestsPerWindow int
	ClientWindow      time.Duration
	// DBPool is nil when the in-memory store is used
	DBPool database.Pool
}

type Server struct {
	httpServer *http.Server
}

// NewServer creates a new Server instance
func NewServer(opts Options, groupService group.Service) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           NewRouter(opts, groupService),
			ReadHeaderTimeout: ReadHeaderTimeout,
		},
	}
}

// NewRouter builds the middleware stack and routes
func NewRouter(opts Options, groupService group.Service) http.Handler {
	r := chi.NewRouter()

	proxies := newProxySet(opts.TrustedProxies)
	tracker := newClientTracker(opts.RequestsPerWindow, opts.ClientWindow)

	// Outermost first
	r.Use(SecurityHeadersMiddleware())
	r.Use(loggingMiddleware)
	r.Use(AuthMiddleware(opts.APIKey, proxies, tracker))
	r.Use(ThrottleMiddleware(proxies, tracker))
	r.Use(RequestSizeLimitMiddleware(MaxRequestBodyBytes))
	r.Use(metrics.Middleware)

	// Health check routes (unversioned)
	r.Get("/healthz", handler.HandleHealthz())
	r.Get("/readyz", handler.HandleReadyz(opts.DBPool))
	r.Get("/version", handler.HandleVersion(opts.Version))

	// Metrics endpoint (public, for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	groupHandler := handler.NewGroupHandler(groupService)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groupHandler.HandleListGroups)
			r.Post("/", groupHandler.HandleCreateGroup)
			r.Get("/cache/stats", groupHandler.HandleCacheStats)
			r.Get("/participants/{participant}/active-groups", groupHandler.HandleGetActiveGroups)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", groupHandler.HandleGetGroup)
				r.Get("/members", groupHandler.HandleGetGroupMembers)
				r.Get("/costs", groupHandler.HandleGetGroupCosts)
				r.Get("/is-member", groupHandler.HandleIsGroupMember)

				r.Post("/join", groupHandler.HandleJoinGroup)
				r.Post("/leave", groupHandler.HandleLeaveGroup)
				r.Post("/finalize", groupHandler.HandleFinalizeGroup)
				r.Post("/disband", groupHandler.HandleDisbandGroup)

				// Challenge contract only
				r.Post("/activate", groupHandler.HandleActivateGroup)
				r.Post("/complete", groupHandler.HandleCompleteGroup)
			})
		})
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}

// Start starts the server
func (s *Server) Start() error {
	logger.Info(LogMsgServerStarting, "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

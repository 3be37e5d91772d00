package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/http/handler"
	"github.com/brandpilot/brandpilot/infrastructure/http/middleware"
	"github.com/brandpilot/brandpilot/infrastructure/http/response"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

// RouterDeps carries the services exposed over HTTP
type RouterDeps struct {
	Audit       inbound.AuditLedger
	Budget      inbound.BudgetGovernor
	Gate        inbound.ApprovalGate
	Deployments inbound.DeploymentManager
	Tickets     inbound.TicketTracker
	Coordinator inbound.ActionCoordinator
	Tokens      outbound.TokenService
	Recorder    middleware.RequestRecorder
	Gatherer    prometheus.Gatherer
	Logger      logger.Logger

	CORSAllowedOrigins []string
	CorrelationHeader  string
}

// NewRouter wires every route. Everything under /api/v1 requires an operator
// token. CORS wraps the router so preflights reach it without a route match.
func NewRouter(deps RouterDeps) http.Handler {
	router := mux.NewRouter()
	router.Use(
		middleware.Correlation(deps.CorrelationHeader),
		middleware.Observe(deps.Logger, deps.Recorder),
	)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAuthMiddleware(deps.Tokens).RequireOperator)

	handler.NewApprovalHandler(deps.Gate, deps.Coordinator).RegisterRoutes(api)
	handler.NewDeploymentHandler(deps.Deployments, deps.Coordinator).RegisterRoutes(api)
	handler.NewTicketHandler(deps.Tickets, deps.Coordinator).RegisterRoutes(api)
	handler.NewAuditHandler(deps.Audit, deps.Budget).RegisterRoutes(api)

	return middleware.CORS(deps.CORSAllowedOrigins)(router)
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger logger.Logger
}

func NewServer(addr string, router http.Handler, log logger.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
	}
}

// Start blocks until the server stops. ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.server.Addr})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}

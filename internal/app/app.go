package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"pulseanalytics/internal/analytics"
	"pulseanalytics/internal/config"
	apierrors "pulseanalytics/internal/errors"
	"pulseanalytics/internal/infrastructure"
	customMiddleware "pulseanalytics/internal/middleware"
	"pulseanalytics/internal/services"
	handlers "pulseanalytics/internal/transport/http"
	ws "pulseanalytics/internal/websocket"
	"pulseanalytics/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Engine        *analytics.Engine
	Services      *ServiceContainer
	ErrorHandler  *apierrors.ErrorHandler

	// WebSocketHub and Broadcaster are nil when live updates are disabled
	WebSocketHub *ws.Hub
	Broadcaster  *ws.Broadcaster
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Analytics *services.AnalyticsService
	Health    *services.HealthService
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from cfg. It starts no goroutines; call Run.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("service", contracts.ServiceName),
		slog.String("version", contracts.Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	engine, err := analytics.NewEngine(cfg.Engine.Analytics(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics engine: %w", err)
	}

	if err := infrastructure.RegisterEngineGauges(otelProviders.Meter, func() (int, bool) {
		snap := engine.Snapshot()
		return snap.Buffered, snap.Ready
	}); err != nil {
		return nil, fmt.Errorf("failed to register engine gauges: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Engine:        engine,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() {
	analyticsService := services.NewAnalyticsService(a.Engine, a.Logger)
	analyticsService.SetMetrics(a.Metrics)

	// A nil *Hub must not reach the health service as a non-nil interface.
	var clients services.ClientCounter
	if a.Config.WebSocket.Enabled {
		a.WebSocketHub = ws.NewHub(a.Logger)
		a.Broadcaster = ws.NewBroadcaster(a.WebSocketHub, a.Engine, a.Config.WebSocket.BroadcastInterval, a.Logger)
		a.Broadcaster.SetMetrics(a.Metrics)
		clients = a.WebSocketHub
	}

	a.Services = &ServiceContainer{
		Analytics: analyticsService,
		Health:    services.NewHealthService(contracts.Version, a.Engine, clients, a.Logger),
	}

	a.ErrorHandler = apierrors.NewErrorHandler(a.Logger, false)
	a.ErrorHandler.SetAvailableEndpoints(a.endpoints())
}

func (a *Application) endpoints() []string {
	if a.WebSocketHub != nil {
		return handlers.Endpoints
	}
	endpoints := make([]string, 0, len(handlers.Endpoints))
	for _, e := range handlers.Endpoints {
		if e != "GET /ws" {
			endpoints = append(endpoints, e)
		}
	}
	return endpoints
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware that does not wrap the ResponseWriter, so the websocket
	// upgrade can still hijack the connection.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	if a.WebSocketHub != nil {
		wsHandler := ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger)
		r.With(customMiddleware.WebSocketTrace(a.OTelProviders)).Get("/ws", wsHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → security → limits
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.DefaultCORSConfig(a.Config.Security.AllowedOrigins)))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(a.Config.Security.RateLimit, a.Logger).Handler)
		}

		r.Use(customMiddleware.MaxBodyBytes(a.Config.Server.MaxBodyBytes))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		r.Method(http.MethodGet, "/", handlers.NewIndexHandler(contracts.Version, a.endpoints()))

		handlers.NewHealthHandler(a.Services.Health, a.Logger).RegisterRoutes(r)
		handlers.NewAnalyticsHandler(
			a.Services.Analytics,
			customMiddleware.NewRequestValidator(a.Logger),
			a.Logger,
			a.ErrorHandler,
		).RegisterRoutes(r)
		handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP).RegisterRoutes(r)

		// Registered on the group so 404s and 405s pass through its middleware.
		r.NotFound(a.ErrorHandler.NotFound)
		r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM, then
// shuts down gracefully.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	return a.Serve(ctx, listener)
}

// Serve runs the server on listener together with the websocket hub and
// broadcaster until ctx is cancelled or one of them fails.
func (a *Application) Serve(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("addr", listener.Addr().String()))
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.WebSocketHub != nil {
		g.Go(func() error { return a.WebSocketHub.Run(gctx) })
		g.Go(func() error { return a.Broadcaster.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutdown requested")
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop drains in-flight requests and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

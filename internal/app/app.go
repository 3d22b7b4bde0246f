package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"geodash/internal/config"
	"geodash/internal/dataprocessing"
	"geodash/internal/errors"
	"geodash/internal/infrastructure"
	customMiddleware "geodash/internal/middleware"
	"geodash/internal/services"
	"geodash/internal/session"
	handlers "geodash/internal/transport/http"
	ws "geodash/internal/websocket"
	"geodash/pkg/contracts"
)

// AppName is the human readable service name
const AppName = "geodash - specimen proximity dashboard"

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(contracts.Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Runtime       *infrastructure.RuntimeCollector
	Sessions      *session.MemoryStore
	WebSocketHub  *ws.Hub
	ErrorHandler  *errors.ErrorHandler
	Services      *ServiceContainer

	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Dataset *services.DatasetService
	Health  *services.HealthService
}

// NewApplication loads configuration, initializes the global logger and
// builds the application.
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

// New builds the application from an explicit configuration and logger
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.GetFullVersionString()),
		slog.String("build_id", BuildID))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	meter := a.OTelProviders.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(infrastructure.MeterName)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.Metrics = metrics

	runtimeCollector, err := infrastructure.NewRuntimeCollector(meter, a.Config.Telemetry.RuntimeInterval)
	if err != nil {
		return fmt.Errorf("failed to create runtime metrics: %w", err)
	}
	a.Runtime = runtimeCollector

	a.ErrorHandler = errors.NewErrorHandler(a.Logger, a.Config.Logging.Development).WithMetrics(metrics)

	a.Sessions = session.NewMemoryStore(a.Config.Session.TTL)

	hub := ws.NewHub(a.Logger, metrics)
	hub.Start()
	a.WebSocketHub = hub

	pipeline := dataprocessing.NewPipeline(dataprocessing.OptionsFromConfig(a.Config.Pipeline), a.Logger, metrics)

	a.Services = &ServiceContainer{
		Dataset: services.NewDatasetService(a.Sessions, pipeline, hub, metrics, a.Config.Upload.MaxBytes, a.Logger),
		Health:  services.NewHealthService(contracts.Version, BuildTime, BuildID, a.Sessions, hub, a.Logger),
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Safe for websocket upgrades: neither wraps the ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Services.Dataset, handlers.WebSocketOptions{
		AllowedOrigins:  a.getCORSConfig().AllowedOrigins,
		AllowAllOrigins: a.isDevelopmentMode(),
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		PingPeriod:      a.Config.WebSocket.PingPeriod,
		PongWait:        a.Config.WebSocket.PongWait,
	}, a.Logger, a.ErrorHandler)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → request log and recovery → headers → CORS → rate limit → timeout
		tracer := a.OTelProviders.Tracer
		if tracer == nil {
			tracer = otel.Tracer(infrastructure.ServiceName)
		}
		r.Use(customMiddleware.NewOTelMiddleware(tracer, a.Metrics, a.Logger).Handler)
		r.Use(errors.NewErrorMiddleware(a.ErrorHandler, a.Logger).Handler)
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		r.Route("/v1", func(r chi.Router) {
			datasetHandler := handlers.NewDatasetHandler(a.Services.Dataset, a.Logger, a.ErrorHandler, a.Config.Upload.MaxBytes)
			r.Mount("/sessions", datasetHandler.Routes())

			r.Mount("/stats", handlers.NewMetricsHandler(a.WebSocketHub, a.Sessions, a.Runtime).Routes())

			r.Post("/log/client", handlers.NewClientLogHandler(a.Logger, a.ErrorHandler).Handle)
		})
	})
}

// getCORSConfig builds the CORS policy from the security section
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: append([]string(nil), a.Config.Security.AllowedOrigins...),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"If-None-Match",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"ETag",
			"Content-Disposition",
			"X-Request-ID",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}

	if a.isDevelopmentMode() {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:8050",
		)
	}

	return cfg
}

// isDevelopmentMode reports whether the configured environment is development
func (a *Application) isDevelopmentMode() bool {
	return a.Config.Logging.Development || a.Config.Telemetry.Environment == "development"
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
	}
}

// Start starts the session sweeper and the HTTP server. A listen failure
// calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	a.stopSweeper = stopSweeper
	a.sweeperDone = make(chan struct{})
	go func() {
		defer close(a.sweeperDone)
		session.RunSweeper(sweepCtx, a.Sessions, a.Config.Session.SweepInterval, a.Logger, func(n int) {
			infrastructure.RecordActiveSessionChange(sweepCtx, a.Metrics, -int64(n))
		})
	}()

	go a.Runtime.Start(sweepCtx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.stopSweeper != nil {
		a.stopSweeper()
		<-a.sweeperDone
	}
	a.Runtime.Stop()

	a.WebSocketHub.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck reports components that are not ready
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.Services.Health.ReadinessCheck(ctx)
	if status.Status == "ready" {
		return nil
	}

	var notReady []string
	for name, svc := range status.Services {
		if sh, ok := svc.(services.ServiceHealth); ok && sh.Status != "ready" {
			notReady = append(notReady, fmt.Sprintf("%s: %s", name, sh.Message))
		}
	}
	return fmt.Errorf("components not ready: %v", notReady)
}

// Package server assembles and runs the Doctor Direct AI service.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/api"
	"github.com/doctor-direct/ai-orchestrator/internal/config"
	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/audit"
	"github.com/doctor-direct/ai-orchestrator/internal/services/cache"
	"github.com/doctor-direct/ai-orchestrator/internal/services/database"
	"github.com/doctor-direct/ai-orchestrator/internal/services/metrics"
	"github.com/doctor-direct/ai-orchestrator/internal/services/middleware"
	"github.com/doctor-direct/ai-orchestrator/internal/services/orchestrator"
	"github.com/doctor-direct/ai-orchestrator/internal/services/providers"
	"github.com/doctor-direct/ai-orchestrator/internal/services/ratelimit"
	"github.com/doctor-direct/ai-orchestrator/internal/services/registry"
	"github.com/doctor-direct/ai-orchestrator/internal/services/request"
	"github.com/doctor-direct/ai-orchestrator/internal/services/response"
	"github.com/doctor-direct/ai-orchestrator/internal/services/scheduler"
	"github.com/doctor-direct/ai-orchestrator/internal/services/triage"
	"github.com/doctor-direct/ai-orchestrator/pkg/builder"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const serviceName = "doctor-direct-ai"

// Server is one instance of the AI service
type Server struct {
	config  *config.Config
	builder *builder.Builder
	app     *fiber.App

	registry     *registry.Registry
	clients      orchestrator.ClientResolver
	orchestrator *orchestrator.Orchestrator
	metrics      *metrics.Metrics
	promRegistry *prometheus.Registry

	redis     *redis.Client
	db        *database.DB
	limiter   *ratelimit.Limiter
	cache     *cache.ResponseCache
	recorder  *audit.Recorder
	scheduler *scheduler.Scheduler
}

// Option customizes a Server before Setup
type Option func(*Server)

// WithClients replaces the vendor SDK clients
func WithClients(c orchestrator.ClientResolver) Option {
	return func(s *Server) { s.clients = c }
}

// New creates a server for cfg. The cfg parameter must not be nil.
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.Load() or the config builder to create config")
	}
	s := &Server{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithBuilder creates a server with the builder's middlewares and limits
func NewWithBuilder(b *builder.Builder, opts ...Option) *Server {
	s := New(b.Build(), opts...)
	s.builder = b
	return s
}

// App returns the fiber app once Setup has run
func (s *Server) App() *fiber.App {
	return s.app
}

// Orchestrator returns the orchestrator once Setup has run
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

// Setup validates configuration and wires infrastructure, services,
// middleware and routes. Close releases what Setup acquired.
func (s *Server) Setup() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	if err := s.initializeInfrastructure(); err != nil {
		s.Close()
		return err
	}
	if err := s.initializeServices(); err != nil {
		s.Close()
		return err
	}

	s.app = createFiberApp(s.config)
	s.setupMiddleware()
	s.setupRoutes()
	return nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.Setup(); err != nil {
		return err
	}
	defer s.Close()

	s.scheduler.Start()

	listenAddr := ":" + s.config.Server.Port

	fmt.Printf("Doctor Direct AI starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Providers: %s\n", strings.Join(s.registry.Names(), ", "))
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

// Close stops background work and releases connections
func (s *Server) Close() {
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			fiberlog.Errorf("Failed to stop scheduler: %v", err)
		}
	}
	if s.recorder != nil {
		s.recorder.Stop()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			fiberlog.Errorf("Failed to close response cache: %v", err)
		}
	}
	if s.limiter != nil {
		if err := s.limiter.Close(); err != nil {
			fiberlog.Errorf("Failed to close rate limiter: %v", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			fiberlog.Errorf("Failed to close Redis client: %v", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}
}

func createFiberApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:           "Doctor Direct AI v1.0",
		EnablePrintRoutes: !cfg.IsProduction(),
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		ReadBufferSize:    8192,
		WriteBufferSize:   8192,
		CaseSensitive:     true,
		ServerHeader:      "DoctorDirectAI",
		ErrorHandler:      errorHandler,
	})
}

// errorHandler renders errors that escape handlers, such as unknown routes,
// in the common envelope
func errorHandler(c *fiber.Ctx, err error) error {
	requestID := request.NewBaseService().GetRequestID(c)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.Envelope{
			Success: false,
			Error: &models.ErrorBody{
				Kind:      models.ErrorKindInternal,
				Message:   fe.Message,
				RequestID: requestID,
			},
			Timestamp: time.Now().UTC(),
		})
	}
	fiberlog.Errorf("[%s] unhandled error: %v", requestID, err)
	return response.NewBaseService().Error(c, err, requestID)
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func (s *Server) initializeInfrastructure() error {
	if s.config.RateLimit.Enabled && s.config.RateLimit.Store == models.RateLimitStoreRedis {
		client, err := createRedisClient(s.config.RateLimit.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create Redis client: %w", err)
		}
		s.redis = client
		fiberlog.Info("Redis client initialized successfully")
	} else {
		fiberlog.Info("Redis not configured - rate limit counters kept in memory")
	}

	if s.config.Database != nil {
		db, err := database.New(*s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		fiberlog.Info("Database migrations completed successfully")
	} else {
		fiberlog.Info("Database not configured - audit trail disabled")
	}

	return nil
}

func createRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3

	client := redis.NewClient(opt)
	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

func (s *Server) initializeServices() error {
	s.promRegistry = prometheus.NewRegistry()
	s.promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.New(s.promRegistry)

	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	s.scheduler = sched

	s.registry = registry.New(s.config.AI)
	for _, st := range s.registry.Statuses() {
		if !st.Usable {
			fiberlog.Warnf("Provider %s disabled: %s", st.Name, st.Reason)
		}
	}
	if s.clients == nil {
		s.clients = providers.NewSet()
	}

	opts := []orchestrator.Option{
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithRetryConfig(s.config.AI.Retry),
	}

	if s.config.RateLimit.Enabled {
		var store ratelimit.Store
		if s.redis != nil {
			store = ratelimit.NewRedisStore(s.redis)
		} else {
			store = ratelimit.NewMemoryStore(time.Duration(s.config.RateLimit.CleanupIntervalMs) * time.Millisecond)
		}
		s.limiter = ratelimit.New(store, ratelimit.WithRules(s.config.RateLimit.Rules))
		opts = append(opts, orchestrator.WithLimiter(s.limiter))
	}

	if s.config.Cache.Enabled {
		rc, err := cache.New(s.config.Cache)
		if err != nil {
			return fmt.Errorf("failed to create response cache: %w", err)
		}
		s.cache = rc
		opts = append(opts, orchestrator.WithCache(rc))
		fiberlog.Infof("Response cache enabled (%s backend)", s.config.Cache.Backend)
	}

	if s.db != nil && s.config.Audit.Enabled {
		sink := audit.NewGormSink(s.db.DB)
		s.recorder = audit.NewRecorder(sink, s.config.Audit, s.metrics)
		opts = append(opts, orchestrator.WithRecorder(s.recorder))

		if s.config.Audit.RetentionDays > 0 {
			interval := time.Duration(s.config.Audit.PruneIntervalMinutes) * time.Minute
			if interval <= 0 {
				interval = time.Hour
			}
			retention := time.Duration(s.config.Audit.RetentionDays) * 24 * time.Hour
			if err := s.scheduler.AddAuditRetention(sink, retention, interval); err != nil {
				return err
			}
		}
	}

	s.orchestrator = orchestrator.New(s.registry, s.clients, opts...)
	return nil
}

func (s *Server) setupMiddleware() {
	isProd := s.config.IsProduction()
	reqSvc := request.NewBaseService()

	// Recover middleware (must be first)
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Echo the request ID so clients can quote it
	s.app.Use(func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderXRequestID, reqSvc.GetRequestID(c))
		return c.Next()
	})

	if s.config.Server.MetricsPath != "" {
		prom := fiberprometheus.NewWithRegistry(s.promRegistry, serviceName, "http", "", nil)
		prom.RegisterAt(s.app, s.config.Server.MetricsPath)
		s.app.Use(prom.Middleware)
	}

	// Coarse per-client cap in front of the per-operation AI quotas
	globalMax, globalWindow := 600, time.Minute
	keyFunc := func(c *fiber.Ctx) string { return c.IP() }
	if s.builder != nil && s.builder.GetGlobalRateLimit() != nil {
		rl := s.builder.GetGlobalRateLimit()
		globalMax, globalWindow = rl.Max, rl.Expiration
		if rl.KeyFunc != nil {
			keyFunc = rl.KeyFunc
		}
	}
	s.app.Use(limiter.New(limiter.Config{
		Max:               globalMax,
		Expiration:        globalWindow,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      keyFunc,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == s.config.Server.MetricsPath
		},
		LimitReached: func(c *fiber.Ctx) error {
			requestID := reqSvc.GetRequestID(c)
			return response.NewBaseService().AIError(c, models.ErrorKindRateLimit, time.Now().Add(globalWindow), requestID)
		},
	}))

	// Request timeout
	requestTimeout := time.Duration(s.config.Server.RequestTimeoutMs) * time.Millisecond
	if s.builder != nil && s.builder.GetTimeoutConfig() != nil {
		requestTimeout = s.builder.GetTimeoutConfig().Timeout
	}
	s.app.Use(func(c *fiber.Ctx) error {
		const (
			defaultTimeout = 2 * time.Minute
			maxTimeout     = 5 * time.Minute
		)

		timeout := defaultTimeout
		if requestTimeout > 0 {
			timeout = requestTimeout
		}
		if customTimeout := c.Get("X-Request-Timeout"); customTimeout != "" {
			if d, err := time.ParseDuration(customTimeout); err == nil && d > 0 {
				timeout = min(d, maxTimeout)
			}
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		return c.Next()
	})

	// Compression
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Logging
	if isProd {
		s.app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Request-Timeout",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: s.config.Server.AllowedOrigins != "*",
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
	}))

	if s.builder != nil {
		for _, m := range s.builder.GetMiddlewares() {
			s.app.Use(m)
		}
	}

	// Profiler (dev only)
	if !isProd {
		s.app.Use(pprof.New())
	}
}

func (s *Server) setupRoutes() {
	reqSvc := request.NewBaseService()
	respSvc := response.NewBaseService()

	var db api.Pinger
	if s.db != nil {
		db = s.db
	}
	var redisClient redis.UniversalClient
	if s.redis != nil {
		redisClient = s.redis
	}

	healthHandler := api.NewHealthHandler(s.registry, redisClient, db)
	aiHandler := api.NewAIHandler(s.orchestrator, reqSvc, respSvc)
	triageHandler := api.NewTriageHandler(triage.NewService(s.orchestrator), reqSvc, respSvc)
	providersHandler := api.NewProvidersHandler(s.registry, respSvc)

	s.app.Get("/", welcomeHandler())
	s.app.Get("/health", healthHandler.HealthCheck)

	apiGroup := s.app.Group("/api", middleware.NewAuthMiddleware(s.config.Auth).Handler())

	aiGroup := apiGroup.Group("/ai")
	aiGroup.Post("/chat", aiHandler.Chat)
	aiGroup.Post("/compare", aiHandler.Compare)
	aiGroup.Post("/symptoms", triageHandler.Symptoms)
	aiGroup.Get("/providers", providersHandler.List)

	apiGroup.Post("/health/vitals", triageHandler.Vitals)
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Doctor Direct AI service",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"chat":      "/api/ai/chat",
				"compare":   "/api/ai/compare",
				"symptoms":  "/api/ai/symptoms",
				"providers": "/api/ai/providers",
				"vitals":    "/api/health/vitals",
				"health":    "/health",
			},
		})
	}
}

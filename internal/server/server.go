// Package server assembles the admission gate: infrastructure, service
// wiring, HTTP surface and lifecycle.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/advisorai/admission-gate/internal/api"
	"github.com/advisorai/admission-gate/internal/config"
	"github.com/advisorai/admission-gate/internal/services/admission"
	"github.com/advisorai/admission-gate/internal/services/cache"
	"github.com/advisorai/admission-gate/internal/services/database"
	"github.com/advisorai/admission-gate/internal/services/embedding"
	"github.com/advisorai/admission-gate/internal/services/gate"
	"github.com/advisorai/admission-gate/internal/services/quota"
	"github.com/advisorai/admission-gate/internal/services/store"
	"github.com/advisorai/admission-gate/internal/services/usage"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const (
	usageWorkerPoolSize   = 2
	usageWorkerBufferSize = 1024
	shutdownTimeout       = 30 * time.Second
)

// Server is one admission gate instance.
type Server struct {
	config *config.Config
	app    *fiber.App

	store       store.Store
	db          *database.DB
	hierarchy   *cache.Hierarchy
	gate        *gate.Gate
	ledger      *quota.Ledger
	usageWorker *usage.Worker
}

// New creates a server instance with the given configuration. The cfg
// parameter is required and must not be nil.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}
	return &Server{config: cfg}
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(s.config)

	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	s.app = createFiberApp(s.config)

	if err := s.initializeInfrastructure(); err != nil {
		return err
	}
	defer s.closeInfrastructure()

	s.initializeServices()
	s.setupMiddleware()
	s.setupRoutes()

	fmt.Printf("AdmissionGate starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", s.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

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

	return s.shutdown()
}

func (s *Server) shutdown() error {
	fiberlog.Info("Server shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- s.app.ShutdownWithTimeout(shutdownTimeout)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	// Drain lets inflight gated work finish before the pools stop.
	s.gate.Drain()
	if s.usageWorker != nil {
		s.usageWorker.Stop()
	}

	fiberlog.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) initializeInfrastructure() error {
	st, err := store.New(s.config.Store)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	s.store = st
	fiberlog.Infof("Store (%s) initialized successfully", s.config.Store.Backend)

	if s.config.Database != nil {
		db, err := database.New(*s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())
	} else {
		fiberlog.Info("Database not configured - usage audit log disabled")
	}

	return nil
}

func (s *Server) closeInfrastructure() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			fiberlog.Errorf("Failed to close store: %v", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}
}

func (s *Server) initializeServices() {
	var embedder cache.Embedder
	var index *cache.SimilarityIndex

	if s.config.Cache.Enabled {
		if s.config.Cache.SimilarityIndex != nil {
			idx, err := cache.NewSimilarityIndex(s.config.Cache.SimilarityIndex)
			if err != nil {
				fiberlog.Errorf("Similarity index initialization failed, falling back to recent-window scan: %v", err)
			} else {
				index = idx
				fiberlog.Info("Similarity index initialized successfully")
			}
		}

		if index == nil {
			provider, err := embedding.NewOpenAIProvider(s.config.Embedding)
			if err != nil {
				fiberlog.Errorf("Embedding provider initialization failed - semantic level disabled: %v", err)
			} else {
				ttl := time.Duration(s.config.Embedding.TTLSeconds) * time.Second
				embedder = embedding.NewCache(provider, s.store, ttl)
			}
		}
	}

	s.hierarchy = cache.NewHierarchy(s.store, s.config.Cache, embedder, index)
	s.gate = gate.New(s.config.Gate)

	ledger, err := quota.NewLedger(s.store, s.config.Quota)
	if err != nil {
		// The fallback store allocation only fails on a non-positive
		// capacity, which NewLedger never passes.
		panic(fmt.Sprintf("quota ledger initialization failed: %v", err))
	}
	s.ledger = ledger

	if s.db != nil {
		usageSvc := usage.NewService(s.db.DB)
		if err := usageSvc.AutoMigrate(); err != nil {
			fiberlog.Errorf("Usage table migration failed - audit log disabled: %v", err)
		} else {
			s.usageWorker = usage.NewWorker(usageSvc, usageWorkerPoolSize, usageWorkerBufferSize)
			fiberlog.Info("Usage audit worker initialized successfully")
		}
	}
}

func (s *Server) setupMiddleware() {
	isProd := s.config.IsProduction()

	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	s.app.Use(requestid.New())

	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

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
		AllowOrigins:  s.config.Server.AllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, User-Agent, X-Request-ID, X-Admin-Token",
		AllowMethods:  "GET, POST, OPTIONS",
		MaxAge:        86400,
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, X-Estimated-Cost, Retry-After",
	}))

	if !isProd {
		s.app.Use(pprof.New())
	}
}

func (s *Server) setupRoutes() {
	var recorder admission.UsageRecorder
	if s.usageWorker != nil {
		recorder = s.usageWorker
	}
	controller := admission.NewController(s.config, s.hierarchy, s.gate, s.ledger, recorder)

	admissionHandler := api.NewAdmissionHandler(controller)
	healthHandler := api.NewHealthHandler(s.store, s.ledger)

	var usageSvc *usage.Service
	if s.db != nil {
		usageSvc = usage.NewService(s.db.DB)
	}
	statsHandler := api.NewStatsHandler(s.hierarchy, s.gate, s.ledger, usageSvc)
	manageHandler := api.NewManageHandler(s.hierarchy)

	s.app.Get("/", welcomeHandler())
	s.app.Get("/health", healthHandler.HealthCheck)

	v1Group := s.app.Group("/v1/admission")
	v1Group.Post("/decide", admissionHandler.Decide)
	v1Group.Post("/complete", admissionHandler.Complete)

	adminGroup := s.app.Group("/admin", api.AdminGuard(s.config.Server.AdminToken))
	adminGroup.Get("/stats", statsHandler.Stats)
	adminGroup.Get("/quota/:id", statsHandler.ClientQuota)
	adminGroup.Get("/usage/:id", statsHandler.ClientUsage)
	adminGroup.Post("/cache/cleanup", manageHandler.Cleanup)
	adminGroup.Post("/cache/clear", manageHandler.Clear)
	adminGroup.Post("/cache/warmup", manageHandler.Warmup)
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "AdmissionGate v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "AdmissionGate",
	})
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

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to AdmissionGate!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"decide":   "/v1/admission/decide",
				"complete": "/v1/admission/complete",
				"health":   "/health",
				"stats":    "/admin/stats",
			},
		})
	}
}

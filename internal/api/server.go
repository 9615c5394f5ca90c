package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rowline-app/rowline/internal/config"
	"github.com/rowline-app/rowline/internal/database"
	"github.com/rowline-app/rowline/internal/observability"
	"github.com/rowline-app/rowline/internal/records"
)

// Server is the HTTP front of the record service.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	provider *database.Provider
	service  *records.Service
	metrics  *observability.Metrics
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *config.Config, provider *database.Provider, service *records.Service, metrics *observability.Metrics) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "Rowline",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: errorHandler,
	})

	s := &Server{
		app:      app,
		cfg:      cfg,
		provider: provider,
		service:  service,
		metrics:  metrics,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{
		Generator: func() string { return uuid.New().String() },
	}))
	s.app.Use(cors.New())
	s.app.Use(compress.New())
	if s.metrics != nil {
		s.app.Use(s.metrics.HTTPMiddleware())
	}

	// Request logging
	s.app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info().
			Str("request_id", getRequestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
		return err
	})
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.app.Get("/metrics", s.metrics.Handler())
	}

	rpc := s.app.Group("/api/rpc")
	rpc.Post("/records.list", s.handleRecordsList)
	rpc.Post("/records.search", s.handleRecordsSearch)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	if err := s.provider.Health(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

// Start begins listening for requests. It blocks until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("address", s.cfg.Server.Address).Msg("HTTP server starting")
	return s.app.Listen(s.cfg.Server.Address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("HTTP server shutting down")
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler is the Fiber fallback for errors no handler converted.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(ErrorResponse{
		Error:     err.Error(),
		Code:      "INTERNAL_ERROR",
		RequestID: getRequestID(c),
	})
}

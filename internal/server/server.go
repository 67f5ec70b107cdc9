// Package server exposes CV generation over HTTP.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/compiler"
	"github.com/spigell/autocv/internal/jobposting"
	"github.com/spigell/autocv/internal/logger"
	"github.com/spigell/autocv/internal/settings"
)

const requestIDKey = "requestid"

// Generator produces LaTeX CV source.
type Generator interface {
	Generate(ctx context.Context, profileText string, job jobposting.Posting) (string, error)
}

// Compiler renders LaTeX to PDF.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
	CheckToolchain(ctx context.Context) compiler.Status
}

// JobFetcher downloads a job posting by URL.
type JobFetcher interface {
	Fetch(ctx context.Context, url string) (jobposting.Posting, error)
}

// SettingsStore holds the live generation settings.
type SettingsStore interface {
	Snapshot() settings.Settings
	Update(patch map[string]any) (settings.Settings, error)
}

// Options configures the HTTP server.
type Options struct {
	Generator   Generator
	Compiler    Compiler
	Jobs        JobFetcher
	Settings    SettingsStore
	Logger      *zap.Logger
	CORSOrigins []string
	// BodyLimit caps request bodies in bytes. Zero keeps the fiber default.
	BodyLimit int
	// RequestTimeout bounds one generation request. Zero means no bound.
	RequestTimeout time.Duration
}

// Server is the fiber application with its handlers.
type Server struct {
	app            *fiber.App
	generator      Generator
	compiler       Compiler
	jobs           JobFetcher
	settings       SettingsStore
	logger         *zap.Logger
	requestTimeout time.Duration
}

// New wires handlers and middleware.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Generator == nil:
		return nil, errors.New("generator is required")
	case opts.Compiler == nil:
		return nil, errors.New("compiler is required")
	case opts.Jobs == nil:
		return nil, errors.New("job fetcher is required")
	case opts.Settings == nil:
		return nil, errors.New("settings store is required")
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		generator:      opts.Generator,
		compiler:       opts.Compiler,
		jobs:           opts.Jobs,
		settings:       opts.Settings,
		logger:         log,
		requestTimeout: opts.RequestTimeout,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "autocv",
		DisableStartupMessage: true,
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	s.app.Use(recover.New())
	s.app.Use(requestLogger(log))
	s.app.Use(cors.New(corsConfig(opts.CORSOrigins)))

	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Get("/settings", s.getSettings)
	api.Post("/settings", s.updateSettings)
	api.Get("/providers", s.providers)
	api.Get("/latex", s.latexStatus)
	api.Post("/generate", s.generate)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown waits for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String(logger.FieldRequestID, requestID(c)),
			zap.Error(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
}

func corsConfig(origins []string) cors.Config {
	cleaned := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	cfg := cors.Config{
		AllowOrigins: strings.Join(cleaned, ","),
		AllowMethods: "GET,POST,OPTIONS",
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = "*"
	}
	// Credentials cannot be combined with a wildcard origin.
	cfg.AllowCredentials = cfg.AllowOrigins != "*"
	return cfg
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		log.Info("http request",
			zap.String(logger.FieldRequestID, requestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(started)),
		)
		return err
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

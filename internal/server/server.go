package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/mansoorceksport/imgcheck/internal/config"
	"github.com/mansoorceksport/imgcheck/internal/domain"
	"github.com/mansoorceksport/imgcheck/internal/handler"
	"github.com/mansoorceksport/imgcheck/internal/middleware"
	"github.com/mansoorceksport/imgcheck/internal/repository"
	"github.com/mansoorceksport/imgcheck/internal/service"
	"github.com/mansoorceksport/imgcheck/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// RedisClient enables idempotent replay when set
	RedisClient *redis.Client

	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider

	// Validator defaults to service.ImageValidator
	Validator domain.ImageValidator
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) (*fiber.App, error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	files, err := repository.NewLocalUploadRepository(cfg.Upload.Dir)
	if err != nil {
		return nil, err
	}

	validator := deps.Validator
	if validator == nil {
		validator = service.NewImageValidator(log)
	}

	metrics, err := telemetry.NewUploadMetrics(nil)
	if err != nil {
		log.Warn("Upload metrics unavailable", "error", err)
		metrics = nil
	}

	uploadHandler := handler.NewUploadHandler(files, validator, metrics, log)

	app := fiber.New(fiber.Config{
		AppName:               "imgcheck",
		BodyLimit:             int(cfg.Server.MaxUploadSizeMB * 1024 * 1024),
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return ulid.Make().String() },
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${respHeader:X-Request-ID} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(telemetry.FiberMiddleware(deps.TracerProvider))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "imgcheck",
		})
	})

	if deps.RedisClient != nil {
		app.Post("/", middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Redis.IdempotencyTTL, log), uploadHandler.Upload)
	} else {
		app.Post("/", uploadHandler.Upload)
	}

	log.Info("Upload directory ready", "dir", files.Dir())

	return app, nil
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		log.Error("Request failed", "status", code, "path", c.Path(), "error", err)

		message := err.Error()
		if code == fiber.StatusInternalServerError {
			message = domain.MsgProcessingError
		}
		return c.Status(code).JSON(domain.Failure{Reason: message})
	}
}

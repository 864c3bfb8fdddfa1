// Package httpapi exposes the record service as a JSON API over fiber.
package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mortuary/internal/core"
)

// Server binds a core.Service to HTTP routes.
type Server struct {
	svc     *core.Service
	metrics *core.PrometheusMetrics
	logger  *zap.Logger
}

// New builds the fiber application. metrics may be nil, in which case
// /metrics is not mounted.
func New(svc *core.Service, metrics *core.PrometheusMetrics, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, metrics: metrics, logger: logger}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             32 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fromServiceError(c, err)
		},
	})
	app.Use(recover.New())
	app.Use(s.requestLog)
	s.routes(app)
	return app
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}
	api := app.Group("/api/v1")
	api.Get("/options", s.options)
	api.Get("/records", s.listRecords)
	api.Post("/records", s.createRecord)
	api.Get("/records/:id", s.getRecord)
	api.Put("/records/:id", s.updateRecord)
	api.Post("/records/:id/release", s.releaseRecord)
	api.Post("/records/:id/transfer", s.transferRecord)
	api.Get("/export", s.exportRecords)
	api.Post("/import", s.importRecords)
	api.Post("/backups", s.createBackup)
	api.Get("/backups", s.listBackups)
}

// requestLog tags each request with an id and logs its outcome.
func (s *Server) requestLog(c *fiber.Ctx) error {
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, id)
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}
	s.logger.Info("request",
		zap.String("request_id", id),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

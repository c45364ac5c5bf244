// Package transport assembles the ops HTTP API: health probes, the
// latest-run view, and the Prometheus scrape endpoint.
package transport

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/farmalink/erpbridge/internal/handler"
	"github.com/farmalink/erpbridge/internal/observability"
	"github.com/farmalink/erpbridge/internal/repository"
)

func NewServer(logger *zap.Logger, metrics *observability.Metrics, sqlDB *sql.DB, rdb *redis.Client, runs repository.RunRepository) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "erpbridge",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})

	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	handler.RegisterRunRoutes(app, runs)

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	return app
}

package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

func RegisterHealthRoutes(app fiber.Router, ledgerDB *sql.DB, throttle *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(ledgerDB, throttle))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler pings the two stores a synchronization run cannot start
// without: the Postgres ledger and the Redis submission throttle.
func ReadyzHandler(ledgerDB *sql.DB, throttle *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		ledgerErr := ledgerDB.PingContext(ctx)
		throttleErr := throttle.Ping(ctx).Err()

		ledgerStatus := "ok"
		if ledgerErr != nil {
			ledgerStatus = "down"
		}
		throttleStatus := "ok"
		if throttleErr != nil {
			throttleStatus = "down"
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if ledgerErr != nil || throttleErr != nil {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": fiber.Map{
				"ledger":   ledgerStatus,
				"throttle": throttleStatus,
			},
		})
	}
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/repository"
)

func RegisterRunRoutes(app fiber.Router, runs repository.RunRepository) {
	app.Get("/runs/latest", LatestRunHandler(runs))
	app.Get("/modules", ModulesHandler())
}

// LatestRunHandler reports the most recent synchronization run, the same
// record the single-run gate inspects before starting a new one.
func LatestRunHandler(runs repository.RunRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run, err := runs.Last(c.Context())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no runs recorded")
			}
			return err
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"id":            run.ID,
			"correlationId": run.CorrelationID,
			"state":         run.State.String(),
			"inProgress":    !run.State.Terminal(),
			"startedAt":     run.StartedAt,
			"finishedAt":    run.FinishedAt,
		})
	}
}

// ModulesHandler lists the registered document types.
func ModulesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"modules": doctype.Names(),
		})
	}
}

package syncer

import (
	"context"

	"github.com/JINHEE420/ShineDump-sub000/internal/buffer"

	"github.com/gofiber/fiber/v2"
)

// StatusReader reports per-trip buffer counts. *buffer.Store satisfies it.
type StatusReader interface {
	Status(ctx context.Context, tripID string) (buffer.SyncStatus, error)
}

// RegisterRoutes wires the sync inspection and manual-retry endpoints.
func RegisterRoutes(r fiber.Router, s *Syncer, statuses StatusReader, authMiddleware fiber.Handler) {
	r.Get("/:tripID", func(c *fiber.Ctx) error {
		status, err := statuses.Status(c.Context(), c.Params("tripID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(status)
	})

	r.Post("/:tripID/retry", authMiddleware, func(c *fiber.Ctx) error {
		if err := s.Retry(c.Context(), c.Params("tripID")); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		status, err := statuses.Status(c.Context(), c.Params("tripID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(status)
	})
}

package tracking

import (
	"time"

	"github.com/JINHEE420/ShineDump-sub000/internal/position"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes wires the device-facing tracking endpoints: raw position
// ingest and the live tracking status.
func RegisterRoutes(r fiber.Router, tracker *Tracker, source *position.DeviceSource, authMiddleware fiber.Handler) {
	r.Post("/positions", authMiddleware, func(c *fiber.Ctx) error {
		var req position.Position
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Lat == 0 && req.Lng == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		if req.Timestamp.IsZero() {
			req.Timestamp = time.Now()
		}
		source.Push(req)
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Get("/status", func(c *fiber.Ctx) error {
		loadingM, unloadingM, ok := tracker.TargetDistances()
		return c.JSON(fiber.Map{
			"active":                  tracker.Active(),
			"distance_m":              tracker.DistanceM(),
			"has_fix":                 ok,
			"distance_to_loading_m":   loadingM,
			"distance_to_unloading_m": unloadingM,
		})
	})
}

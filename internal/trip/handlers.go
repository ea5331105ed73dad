package trip

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes wires the driver-facing lifecycle endpoints.
func RegisterRoutes(r fiber.Router, m *Manager, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.LoadingArea.ID == "" || req.UnloadingArea.ID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "loading_area and unloading_area required")
		}
		t, err := m.Start(c.Context(), req)
		if err != nil {
			return lifecycleError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	r.Get("/current", func(c *fiber.Ctx) error {
		return c.JSON(m.Snapshot(c.Context()))
	})

	r.Put("/", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		t, err := m.Update(c.Context(), req)
		if err != nil {
			return lifecycleError(err)
		}
		return c.JSON(t)
	})

	r.Post("/end", authMiddleware, func(c *fiber.Ctx) error {
		if err := m.End(c.Context()); err != nil {
			return lifecycleError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/force-end", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil || body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason required")
		}
		if err := m.ForceEnd(c.Context(), body.Reason); err != nil {
			return lifecycleError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/resume", authMiddleware, func(c *fiber.Ctx) error {
		t, resumed, err := m.ResumeLatest(c.Context())
		if err != nil {
			return lifecycleError(err)
		}
		if !resumed {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(t)
	})

	r.Get("/history", func(c *fiber.Ctx) error {
		day := time.Now()
		if raw := c.Query("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
			day = parsed
		}
		trips, err := m.History(c.Context(), day)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		if trips == nil {
			trips = []Trip{}
		}
		return c.JSON(trips)
	})

	r.Put("/drive-mode", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Mode DriveMode `json:"mode"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := m.SetDriveMode(c.Context(), body.Mode); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func lifecycleError(err error) error {
	switch {
	case errors.Is(err, ErrTripActive), errors.Is(err, ErrEndInProgress):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoActiveTrip):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrCreation), errors.Is(err, ErrCompletion):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

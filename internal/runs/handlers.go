package runs

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		userID := c.Query("userId")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "userId is required")
		}
		list, err := svc.List(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch runs")
		}
		return c.JSON(list)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		run, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return runError(err)
		}
		return c.JSON(run)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Run
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.UserID == "" || req.StartTime.IsZero() {
			return fiber.NewError(fiber.StatusBadRequest, "userId and startTime required")
		}
		if req.DistanceMeters < 0 || req.ElapsedSeconds < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "distance and elapsedSeconds must not be negative")
		}
		if !isCaller(c, req.UserID) {
			return fiber.NewError(fiber.StatusForbidden, "cannot save runs for another user")
		}
		run, err := svc.Create(c.Context(), req)
		if err != nil {
			return runError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(run)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req Update
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := authorize(c, svc); err != nil {
			return err
		}
		run, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return runError(err)
		}
		return c.JSON(run)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := authorize(c, svc); err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return runError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/live", authMiddleware, func(c *fiber.Ctx) error {
		var req LiveUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing user")
		}
		req.RunID = c.Params("id")
		svc.Live(userID, req)
		return c.SendStatus(fiber.StatusAccepted)
	})
}

func authorize(c *fiber.Ctx, svc *Service) error {
	run, err := svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return runError(err)
	}
	if !isCaller(c, run.UserID) {
		return fiber.NewError(fiber.StatusForbidden, "not your run")
	}
	return nil
}

func isCaller(c *fiber.Ctx, userID string) bool {
	uid, ok := c.Locals("user_id").(string)
	return !ok || uid == "" || uid == userID
}

func runError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "run not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

package achievement

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/definitions", func(c *fiber.Ctx) error {
		return c.JSON(Catalog())
	})

	r.Get("/", func(c *fiber.Ctx) error {
		userID := c.Query("userId")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "userId is required")
		}
		list, err := svc.List(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch achievements")
		}
		return c.JSON(list)
	})

	r.Post("/check", authMiddleware, func(c *fiber.Ctx) error {
		var req CheckRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.UserID == "" || req.Type == "" || req.Data == nil {
			return fiber.NewError(fiber.StatusBadRequest, "userId, type and data required")
		}
		if !ValidTrigger(req.Type) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown trigger type")
		}
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" && uid != req.UserID {
			return fiber.NewError(fiber.StatusForbidden, "cannot check achievements for another user")
		}

		metrics := *req.Data
		// a check of type artifact is itself a collection
		if req.Type == TriggerArtifact && metrics.CollectedCount == 0 {
			metrics.CollectedCount = 1
		}
		res, err := svc.Check(c.Context(), req.UserID, Trigger{Type: req.Type, Metrics: metrics})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to check achievements")
		}
		return c.JSON(res)
	})
}

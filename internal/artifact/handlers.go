package artifact

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		list, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch artifacts")
		}
		return c.JSON(list)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		a, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return notFoundOr500(err)
		}
		return c.JSON(a)
	})

	r.Post("/:id/collect", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "userId required")
		}
		if uid, ok := c.Locals("user_id").(string); ok && uid != "" && uid != body.UserID {
			return fiber.NewError(fiber.StatusForbidden, "cannot collect for another user")
		}
		col, err := svc.Collect(c.Context(), body.UserID, c.Params("id"))
		if err != nil {
			return notFoundOr500(err)
		}
		status := fiber.StatusOK
		if col.Newly {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(col)
	})
}

func notFoundOr500(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "artifact not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

package history

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultNearbyRadiusKm = 10

// RegisterRoutes mounts the catalogue. Reads go to src; writes need svc and answer
// 503 when the catalogue is served from fixtures.
func RegisterRoutes(r fiber.Router, src Source, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		f := Filter{
			Page:     c.QueryInt("page", 1),
			Limit:    c.QueryInt("limit", defaultPageSize),
			Category: c.Query("category"),
			Search:   strings.TrimSpace(c.Query("search")),
		}
		if v := c.Query("verified"); v != "" {
			verified, err := strconv.ParseBool(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "verified must be true or false")
			}
			f.Verified = &verified
		}
		page, err := src.List(c.Context(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch historical events")
		}
		return c.JSON(page)
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("latitude"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("longitude"), 64)
		if errLat != nil || errLng != nil {
			return fiber.NewError(fiber.StatusBadRequest, "latitude and longitude are required")
		}
		radius := defaultNearbyRadiusKm * 1.0
		if v := c.Query("radius"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "radius must be a positive number of kilometres")
			}
			radius = parsed
		}
		events, err := src.Nearby(c.Context(), lat, lng, radius)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch nearby historical events")
		}
		return c.JSON(events)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		ev, err := src.Get(c.Context(), c.Params("id"))
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(ev)
	})

	r.Post("/", writable(svc), authMiddleware, func(c *fiber.Ctx) error {
		var req Event
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validateEvent(req, false); err != nil {
			return err
		}
		req.CreatedBy = userID(c)
		ev, err := svc.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "error creating historical event")
		}
		return c.Status(fiber.StatusCreated).JSON(ev)
	})

	r.Put("/:id", writable(svc), authMiddleware, func(c *fiber.Ctx) error {
		var req Event
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validateEvent(req, true); err != nil {
			return err
		}
		if err := authorizeOwner(c, svc); err != nil {
			return err
		}
		ev, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(ev)
	})

	r.Delete("/:id", writable(svc), authMiddleware, func(c *fiber.Ctx) error {
		if err := authorizeOwner(c, svc); err != nil {
			return err
		}
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return lookupError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Patch("/:id/verify", writable(svc), authMiddleware, func(c *fiber.Ctx) error {
		if !isAdmin(c) {
			return fiber.NewError(fiber.StatusForbidden, "not authorized to verify events")
		}
		var body struct {
			Notes string `json:"notes"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		ev, err := svc.Verify(c.Context(), c.Params("id"), body.Notes)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(ev)
	})
}

func writable(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if svc == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "service unavailable")
		}
		return c.Next()
	}
}

func validateEvent(ev Event, partial bool) error {
	if !partial || ev.Title != "" {
		if strings.TrimSpace(ev.Title) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "title is required")
		}
	}
	if !partial || ev.Description != "" {
		if strings.TrimSpace(ev.Description) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "description is required")
		}
	}
	if !partial || ev.Date != "" {
		if !validDate(ev.Date) {
			return fiber.NewError(fiber.StatusBadRequest, "valid date is required")
		}
	}
	if !partial || ev.Category != "" {
		if !ValidCategory(ev.Category) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category")
		}
	}
	loc := ev.Location
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return fiber.NewError(fiber.StatusBadRequest, "valid coordinates are required")
	}
	return nil
}

func validDate(s string) bool {
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func authorizeOwner(c *fiber.Ctx, svc *Service) error {
	ev, err := svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return lookupError(err)
	}
	if ev.CreatedBy != userID(c) && !isAdmin(c) {
		return fiber.NewError(fiber.StatusForbidden, "not authorized to modify this event")
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "historical event not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch historical event")
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func isAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals("is_admin").(bool)
	return admin
}

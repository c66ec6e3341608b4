package hub

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"trail-go/internal/trail"
)

// RouteStore is what the handlers need from the database layer.
type RouteStore interface {
	InsertRoute(ctx context.Context, in trail.RouteRecord) (string, error)
	InsertWaypoints(ctx context.Context, in []trail.WaypointRecord) error
	GetRoute(ctx context.Context, id string) (Route, error)
}

var _ RouteStore = (*Store)(nil)

// RegisterRoutes mounts the route and waypoint endpoints on r. Writes go
// through authMiddleware; reads are public.
func RegisterRoutes(r fiber.Router, store RouteStore, authMiddleware fiber.Handler) {
	r.Post("/routes", authMiddleware, func(c *fiber.Ctx) error {
		var req trail.RouteRecord
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validateRoute(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		id, err := store.InsertRoute(c.UserContext(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	})

	r.Post("/waypoints", authMiddleware, func(c *fiber.Ctx) error {
		var req []trail.WaypointRecord
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		for i, wp := range req {
			if wp.RouteID == "" {
				return fiber.NewError(fiber.StatusBadRequest, "route_id required")
			}
			if !wp.Type.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("waypoint %d: unknown type %q", i, wp.Type))
			}
		}
		err := store.InsertWaypoints(c.UserContext(), req)
		if errors.Is(err, ErrUnknownRoute) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"inserted": len(req)})
	})

	r.Get("/routes/:id", func(c *fiber.Ctx) error {
		route, err := store.GetRoute(c.UserContext(), c.Params("id"))
		if errors.Is(err, ErrRouteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "route not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(route)
	})
}

func validateRoute(r trail.RouteRecord) error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name required")
	}
	if !r.Difficulty.Valid() {
		return errors.New("difficulty must be Easy, Medium or Hard")
	}
	if r.DistanceKm < 0 || r.TimeMinutes < 0 {
		return errors.New("distance_km and time_minutes must not be negative")
	}
	return nil
}

// APIKeyMiddleware requires "Authorization: Bearer <key>". An empty key
// disables the check.
func APIKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		token := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid api key")
		}
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

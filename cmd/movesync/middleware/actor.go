package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/common/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorKey is the context key for the acting user
	ActorKey ContextKey = "actor"
)

// Headers set by the upstream auth proxy
const (
	HeaderUserID       = "X-User-ID"
	HeaderUserLocation = "X-User-Location"
	HeaderUserRole     = "X-User-Role"
)

// ExtractActor reads the acting user from the proxy headers and stores it
// in the echo context. Requests without X-User-ID act as SERVER.
//
// Accessing in handlers:
//
//	actor := middleware.GetActor(c)
func ExtractActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			c.Set(string(ActorKey), models.Actor{
				Email:    strings.TrimSpace(h.Get(HeaderUserID)),
				Location: strings.TrimSpace(h.Get(HeaderUserLocation)),
				Admin:    strings.EqualFold(strings.TrimSpace(h.Get(HeaderUserRole)), "admin"),
			})
			return next(c)
		}
	}
}

// RequireActor rejects requests without X-User-ID. Mutating routes use it.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetActor(c).Email == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "X-User-ID header is required",
				})
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects non-admin actors
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !GetActor(c).Admin {
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"error": "admin role required",
				})
			}
			return next(c)
		}
	}
}

// GetActor retrieves the actor from the request context.
// Returns the zero actor (SERVER) if not set.
func GetActor(c echo.Context) models.Actor {
	actor, ok := c.Get(string(ActorKey)).(models.Actor)
	if !ok {
		return models.Actor{}
	}
	return actor
}

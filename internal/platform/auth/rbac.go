package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// CapabilityMiddleware resolves the caller's capabilities once per request
// and stores them on the request context.
func CapabilityMiddleware(store RoleStore, table RoleTable, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id := IdentityFromContext(ctx)

			var stored []string
			if id.Email != "" && store != nil {
				roles, err := store.RolesFor(ctx, id.Email)
				if err != nil {
					logger.Error().Err(err).Str("email", id.Email).Msg("role lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "role lookup failed")
				}
				stored = roles
			}

			set := Resolve(id, stored, table)
			c.SetRequest(c.Request().WithContext(WithCapabilities(ctx, set)))
			return next(c)
		}
	}
}

func WithCapabilities(ctx context.Context, set CapabilitySet) context.Context {
	return context.WithValue(ctx, CapabilityKey, set)
}

func CapabilitiesFromContext(ctx context.Context) CapabilitySet {
	set, _ := ctx.Value(CapabilityKey).(CapabilitySet)
	return set
}

// RequireCapability returns 403 unless the caller holds at least one of caps.
func RequireCapability(caps ...Capability) echo.MiddlewareFunc {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			set := CapabilitiesFromContext(c.Request().Context())
			for _, required := range caps {
				if set.Has(required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required capability: %s", strings.Join(names, " or ")))
		}
	}
}

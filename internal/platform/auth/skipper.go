package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. Patients book without an account, so the
// booking flow is public. Patient search is not.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

const publicBookingPrefix = "/api/v1/booking/"

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, publicBookingPrefix)
}

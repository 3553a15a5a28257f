package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are the routes reachable without a bearer token.
var publicPaths = map[string]bool{
	"/health":     true,
	"/auth/login": true,
}

// AuthSkipper returns true for requests whose route should skip
// RequireSession.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

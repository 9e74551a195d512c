package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Laboratory staff roles. ADMIN implicitly satisfies every role check.
const (
	RoleAdmin        = "ADMIN"
	RoleReception    = "RECEPTION"
	RolePhlebotomy   = "PHLEBOTOMY"
	RoleTechnologist = "TECHNOLOGIST"
	RolePathologist  = "PATHOLOGIST"
)

// ValidRoles enumerates every role a user account may carry.
var ValidRoles = map[string]bool{
	RoleAdmin:        true,
	RoleReception:    true,
	RolePhlebotomy:   true,
	RoleTechnologist: true,
	RolePathologist:  true,
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

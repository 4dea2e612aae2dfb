package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/texresolve/accounts-api/internal/api/metrics"
	"github.com/texresolve/accounts-api/internal/core/domain"
)

// RBAC enforces role-based access control. A request that reaches it without
// an identity is refused as unauthenticated.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := domain.IdentityFromContext(c.Request().Context())
			if !ok {
				return reject("missing_header", http.StatusUnauthorized, "Authentication Failed")
			}
			if _, ok := allowed[id.Role]; !ok {
				metrics.AuthRejectionsTotal.WithLabelValues("forbidden_role").Inc()
				return domain.NewAuthorizationError(id.Role)
			}
			return next(c)
		}
	}
}

// Require chains auth and the role gate so the gate always sees a verified identity.
func Require(auth echo.MiddlewareFunc, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	gate := RBAC(allowedRoles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return auth(gate(next))
	}
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/texresolve/accounts-api/internal/api/metrics"
	"github.com/texresolve/accounts-api/internal/core/domain"
	"github.com/texresolve/accounts-api/internal/core/ports"
)

// Auth validates the bearer token and attaches the caller identity to the
// request context. When ledger is non-nil, tokens issued before the account's
// last credential change are refused.
func Auth(verifier ports.TokenVerifier, ledger ports.CredentialLedger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			authHeader := req.Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return reject("missing_header", http.StatusUnauthorized, "Authentication Failed")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return reject("invalid_token", http.StatusBadRequest, "Access token not valid")
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				if errors.Is(err, domain.ErrTokenMissingSubject) {
					return reject("missing_subject", http.StatusBadRequest, "User ID not found in token")
				}
				zerolog.Ctx(ctx).Debug().Err(err).Msg("access token rejected")
				return reject("invalid_token", http.StatusBadRequest, "Access token not valid")
			}

			if ledger != nil {
				changedAt, ok, err := ledger.ChangedAt(ctx, claims.SubjectID)
				switch {
				case err != nil:
					zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", claims.SubjectID).Msg("credential ledger unavailable, skipping revocation check")
				case ok && claims.IssuedAt.Unix() < changedAt.Unix():
					return reject("revoked", http.StatusUnauthorized, "Access token revoked")
				}
			}

			c.SetRequest(req.WithContext(domain.WithIdentity(ctx, claims.Identity())))
			return next(c)
		}
	}
}

func reject(reason string, status int, message string) error {
	metrics.AuthRejectionsTotal.WithLabelValues(reason).Inc()
	return domain.NewAuthenticationError(status, message)
}

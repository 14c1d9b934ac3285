package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront.dev/internal/audit"
	"storefront.dev/internal/auth"
	"storefront.dev/internal/obs"
)

const stageGateway = "gateway-authorization"

// TokenVerifier checks a raw token. *auth.Service satisfies it.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (auth.Principal, error)
}

// AuthorizationFilter rejects requests without a valid token cookie. It only
// checks the token; per-path grants are enforced by the services.
func AuthorizationFilter(verifier TokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, ok := auth.TokenFromCookieMap(auth.CookieMapFromHeader(c.Request.Header), cookieName)
		if !ok || token == "" {
			obs.RecordAuth(stageGateway, "missing")
			reject(c, "missing")
			return
		}
		principal, err := verifier.VerifyToken(ctx, token)
		if errors.Is(err, auth.ErrStoreUnavailable) {
			obs.RecordAuth(stageGateway, "unavailable")
			obs.Logger().WithContext(ctx).WithError(err).Warn("revocation store unavailable")
			abortWithError(c, http.StatusServiceUnavailable, "Service Unavailable")
			return
		}
		if err != nil {
			reason := "invalid"
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				reason = "expired"
			case errors.Is(err, auth.ErrTokenRevoked):
				reason = "revoked"
			}
			obs.RecordAuth(stageGateway, reason)
			reject(c, reason)
			return
		}
		obs.RecordAuth(stageGateway, "valid")
		c.Request = c.Request.WithContext(auth.ContextWithPrincipal(ctx, principal))
	}
}

func reject(c *gin.Context, reason string) {
	_ = audit.LogEvent(c.Request.Context(), audit.EventTokenRejected, map[string]any{
		"reason": reason,
		"path":   c.Request.URL.Path,
		"route":  c.GetString(routeIDKey),
	})
	abortWithError(c, http.StatusUnauthorized, "JWT token is missing or is invalid")
}

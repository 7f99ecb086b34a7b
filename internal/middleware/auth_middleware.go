package middleware

import (
	"context"
	"strings"

	"izin-talep/internal/domain"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/contextutil"
	"izin-talep/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "principal"

// SessionResolver turns a bearer token into the caller of the request.
type SessionResolver interface {
	ResolveToken(ctx context.Context, token string) (domain.Principal, error)
}

// AuthMiddleware rejects requests without a valid session.
func AuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return authenticate(sessions, true)
}

// OptionalAuth attaches the caller when a token is present and lets
// anonymous requests through.
func OptionalAuth(sessions SessionResolver) gin.HandlerFunc {
	return authenticate(sessions, false)
}

func authenticate(sessions SessionResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if required {
				response.AbortWithError(c, apperror.ErrUnauthorized)
				return
			}
			c.Next()
			return
		}

		p, err := sessions.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if required {
				response.AbortWithError(c, err)
				return
			}
			c.Next()
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); found && token != "" {
		return token
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

// SetPrincipal stores p on the gin context and on the request context.
func SetPrincipal(c *gin.Context, p domain.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.UserID)
	c.Set("session_id", p.SessionID)
	c.Set("role", string(p.Role))

	ctx := c.Request.Context()
	ctx = contextutil.WithCaller(ctx, p.UserID, p.SessionID)
	ctx = contextutil.WithLogger(ctx, contextutil.GetLogger(ctx, zap.L()).With(zap.String("user_id", p.UserID)))
	c.Request = c.Request.WithContext(ctx)
}

func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

package middleware

import (
	"izin-talep/internal/domain"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PermissionChecker answers whether role may perform action on resource.
type PermissionChecker interface {
	Can(role domain.Role, resource, action string) (bool, error)
}

// Authorize must run after AuthMiddleware.
func Authorize(checker PermissionChecker, resource, action string) gin.HandlerFunc {
	log := zap.L().Named("middleware.authorize")

	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			response.AbortWithError(c, apperror.ErrUnauthorized)
			return
		}

		allowed, err := checker.Can(p.Role, resource, action)
		if err != nil {
			log.Error("permission check failed", zap.Error(err))
			response.AbortWithError(c, err)
			return
		}

		if !allowed {
			log.Warn("permission denied",
				zap.String("user_id", p.UserID),
				zap.String("role", string(p.Role)),
				zap.String("required", resource+":"+action),
			)
			response.Error(c, apperror.ErrForbidden.HTTPStatus, apperror.ErrForbidden.Code, apperror.ErrForbidden.Message,
				gin.H{"required": resource + ":" + action})
			c.Abort()
			return
		}
		c.Next()
	}
}

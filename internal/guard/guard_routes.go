package guard

import (
	"izin-talep/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, sessions middleware.SessionResolver) {
	r.POST("/authorize",
		middleware.OptionalAuth(sessions),
		middleware.RateLimitByIP(10, 20),
		handler.Authorize,
	)
}

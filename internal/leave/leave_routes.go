package leave

import (
	"izin-talep/internal/guard"
	"izin-talep/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	sessions middleware.SessionResolver,
	checker middleware.PermissionChecker,
	rdb *redis.Client,
	logger *zap.Logger,
) {
	requests := r.Group("/requests")
	requests.Use(middleware.AuthMiddleware(sessions))
	requests.Use(middleware.ContextLogger(logger))
	{
		requests.GET("",
			middleware.RateLimitByUser(5, 20),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionRead),
			handler.GetAll,
		)

		requests.GET("/:id",
			middleware.RateLimitByUser(5, 20),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionRead),
			handler.GetByID,
		)

		requests.POST("",
			middleware.RateLimitByUser(0.5, 3),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionCreate),
			middleware.Idempotency(rdb),
			handler.Create,
		)

		requests.PATCH("/:id/approve",
			middleware.RateLimitByUser(2, 5),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionApprove),
			handler.Approve,
		)

		requests.PATCH("/:id/reject",
			middleware.RateLimitByUser(2, 5),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionReject),
			handler.Reject,
		)

		requests.PATCH("/:id/cancel",
			middleware.RateLimitByUser(2, 5),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionCancel),
			handler.Cancel,
		)

		requests.POST("/reload",
			middleware.RateLimitByUser(0.1, 1),
			middleware.Authorize(checker, guard.ResourceLeave, guard.ActionReload),
			handler.Reload,
		)
	}
}

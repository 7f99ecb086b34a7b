package session

import (
	"izin-talep/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, service Service) {
	session := r.Group("/session")
	{
		session.POST("", middleware.RateLimitByIP(0.5, 5), handler.Login)
		session.GET("", middleware.AuthMiddleware(service), middleware.RateLimitByUser(2, 5), handler.Me)
		session.DELETE("", middleware.AuthMiddleware(service), middleware.RateLimitByUser(2, 5), handler.Logout)
	}
}
